// internal/infra/telegram/runtime_factory.go
package telegram

import (
	"course_runtime/internal/app"
	"course_runtime/internal/domain/course"
	"course_runtime/internal/domain/lms"
	"course_runtime/internal/domain/session"
	"course_runtime/internal/domain/telegram"
	isession "course_runtime/internal/infra/session"

	"github.com/sirupsen/logrus"
)

// RuntimeConfig is everything shared between learners' runtimes.
type RuntimeConfig struct {
	Course   *course.Definition
	Loader   course.PageLoader
	Client   telegram.Client
	Sessions session.Store // Shared backend, namespaced per learner
	// LMS builds a learner's LMS client. Nil runs every runtime offline.
	LMS     func(learnerID int64) lms.Client
	Timings app.Timings
	Logger  *logrus.Entry
}

// NewRuntimeFactory builds chat-backed runtimes. A learner's private chat
// id equals their user id.
func NewRuntimeFactory(cfg RuntimeConfig) app.RuntimeFactory {
	return func(learnerID int64, loop *app.Loop) (*app.CourseController, error) {
		log := cfg.Logger.WithField("learner_id", learnerID)
		view := NewChatSlideView(cfg.Client, learnerID, log)

		deps := app.Dependencies{
			Course:    cfg.Course,
			Loader:    cfg.Loader,
			View:      view,
			TOCView:   NewChatTOCView(cfg.Client, learnerID, cfg.Course.Title, log),
			Media:     NewChatMedia(cfg.Client, learnerID, log),
			Modals:    NewChatModals(cfg.Client, learnerID, log),
			Scheduler: loop,
			Timings:   cfg.Timings,
			Logger:    log,
		}
		if cfg.Sessions != nil {
			deps.Session = isession.ForLearner(cfg.Sessions, cfg.Course.ID, learnerID)
		}
		if cfg.LMS != nil {
			deps.LMS = cfg.LMS(learnerID)
		}

		controller, err := app.NewCourseController(deps)
		if err != nil {
			return nil, err
		}
		view.OnViewportChange(func(sectionID string, ratio float64) {
			loop.Post(func() { controller.OnIntersection(sectionID, ratio) })
		})
		return controller, nil
	}
}
