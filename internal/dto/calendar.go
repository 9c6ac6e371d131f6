package dto

// ── 校历模块 DTO ──

// HolidayCheckResponse 节假日判定响应
type HolidayCheckResponse struct {
	Date    string `json:"date"`
	Holiday bool   `json:"holiday"`
	Reason  string `json:"reason,omitempty"`
}

// CreateHolidayRequest 登记节假日请求
// SiteID 为空表示对全部校区生效
type CreateHolidayRequest struct {
	SiteID      *string `json:"site_id"     binding:"omitempty,uuid"`
	Date        string  `json:"date"        binding:"required"`
	Description string  `json:"description" binding:"max=200"`
}

// HolidayResponse 节假日响应
type HolidayResponse struct {
	ID          string  `json:"id"`
	SiteID      *string `json:"site_id,omitempty"`
	Date        string  `json:"date"`
	Description string  `json:"description,omitempty"`
}

// ImportICSResponse 日历导入结果
type ImportICSResponse struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
}
