package service

import (
	"sync"

	"go.uber.org/zap"

	"attendance-service/internal/audit"
	"attendance-service/internal/config"
	"attendance-service/internal/face"
	"attendance-service/internal/geo"
	"attendance-service/internal/models"
	"attendance-service/internal/notification"
	"attendance-service/internal/repository/scylla"
	"attendance-service/internal/search"
	"attendance-service/internal/security"
	"attendance-service/internal/shift"
)

// ServiceFactory creates and manages service instances
type ServiceFactory struct {
	cfg        *config.Config
	personnel  scylla.PersonnelRepository
	attendance scylla.AttendanceRepository
	profiles   scylla.ProfileImageRepository
	attempts   AttemptTracker
	dispatcher *notification.Dispatcher
	auditor    *audit.Recorder
	reviews    *search.ReviewIndexer
	logger     *zap.Logger

	once     sync.Once
	pipeline *AttendancePipeline
}

func NewServiceFactory(
	cfg *config.Config,
	personnel scylla.PersonnelRepository,
	attendance scylla.AttendanceRepository,
	profiles scylla.ProfileImageRepository,
	attempts AttemptTracker,
	dispatcher *notification.Dispatcher,
	auditor *audit.Recorder,
	reviews *search.ReviewIndexer,
	logger *zap.Logger,
) *ServiceFactory {
	return &ServiceFactory{
		cfg:        cfg,
		personnel:  personnel,
		attendance: attendance,
		profiles:   profiles,
		attempts:   attempts,
		dispatcher: dispatcher,
		auditor:    auditor,
		reviews:    reviews,
		logger:     logger,
	}
}

// AttendancePipeline returns the pipeline instance (singleton)
func (f *ServiceFactory) AttendancePipeline() *AttendancePipeline {
	f.once.Do(func() {
		office := f.cfg.Office
		fence := geo.NewChecker(office.Latitude, office.Longitude, office.RadiusM)
		scorer := security.NewScorer(office.RadiusM, office.WarnRadiusM)

		fallback := models.ShiftWindow{
			Name:         "default",
			StartTime:    f.cfg.Shift.DefaultStart,
			EndTime:      f.cfg.Shift.DefaultEnd,
			GraceMinutes: f.cfg.Shift.DefaultGraceMinutes,
		}
		shifts := shift.NewPolicy(f.personnel, fallback)

		verifier := face.NewVerifier(
			face.BackendFromConfig(f.cfg),
			f.cfg.Face.Tolerance,
			f.cfg.Face.MaxConcurrent,
		)

		// A nil *Dispatcher must stay a nil interface inside the pipeline.
		var publisher EventPublisher
		if f.dispatcher != nil {
			publisher = f.dispatcher
		}

		f.pipeline = NewAttendancePipeline(
			f.personnel, f.attendance, f.profiles, f.attempts,
			verifier, fence, shifts, scorer,
			publisher, f.auditor, f.reviews, f.logger,
		)
	})
	return f.pipeline
}
