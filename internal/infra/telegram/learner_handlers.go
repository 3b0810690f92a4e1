// internal/infra/telegram/learner_handlers.go
package telegram

import (
	"context"
	"fmt"
	"time"

	"course_runtime/internal/app"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

const handlerTimeout = 10 * time.Second

// Replies for refused commands. Successful commands answer through the
// runtime's own views.
const (
	msgNoMoreSections = "No hay más secciones en esta página. Usa /next para continuar."
	msgLastPage       = "Has llegado al final del curso. 🎉"
	msgFirstPage      = "Ya estás en la primera lección."
	msgNothingToClose = "No hay nada pendiente en esta sección."
	msgPageLocked     = "Esa lección todavía está bloqueada."
	msgSectionLocked  = "Completa la sección actual antes de saltar a esa."
	msgPageLoading    = "La lección todavía se está cargando."
	msgError          = "Se produjo un error. Inténtalo de nuevo más tarde."
)

// LearnerCommands maps chat commands onto a learner's course runtime.
type LearnerCommands struct {
	registry *app.RuntimeRegistry
	log      *logrus.Entry
}

func NewLearnerCommands(registry *app.RuntimeRegistry, log *logrus.Entry) *LearnerCommands {
	return &LearnerCommands{registry: registry, log: log.WithField("handler_group", "learner")}
}

// run executes f on the learner's runtime, starting it (and opening the
// course) on first contact. f returns the reply to send, if any.
func (h *LearnerCommands) run(ctx context.Context, learnerID int64, f func(c *app.CourseController) string) (string, error) {
	rt, created, err := h.registry.Get(learnerID)
	if err != nil {
		return "", err
	}
	ctx, cancel := context.WithTimeout(ctx, handlerTimeout)
	defer cancel()

	var reply string
	err = rt.Do(ctx, func(c *app.CourseController) {
		if created {
			c.Init()
		}
		reply = f(c)
	})
	return reply, err
}

func (h *LearnerCommands) Start(ctx context.Context, learnerID int64) (string, error) {
	return h.run(ctx, learnerID, func(c *app.CourseController) string {
		if c.CanResume() {
			return "Tienes progreso guardado. Usa /resume para continuar donde lo dejaste o /next para empezar."
		}
		return "Usa /next para empezar el curso."
	})
}

func (h *LearnerCommands) Resume(ctx context.Context, learnerID int64) (string, error) {
	return h.run(ctx, learnerID, func(c *app.CourseController) string {
		if !c.ResumeProgress() {
			return msgError
		}
		return ""
	})
}

func (h *LearnerCommands) Next(ctx context.Context, learnerID int64) (string, error) {
	return h.run(ctx, learnerID, func(c *app.CourseController) string {
		if reply, ok := completePage(c); !ok {
			return reply
		}
		if c.IsLastSlide() {
			return msgLastPage
		}
		c.NextPage()
		return ""
	})
}

func (h *LearnerCommands) Previous(ctx context.Context, learnerID int64) (string, error) {
	return h.run(ctx, learnerID, func(c *app.CourseController) string {
		if !c.PreviousPage() {
			return msgFirstPage
		}
		return ""
	})
}

func (h *LearnerCommands) Continue(ctx context.Context, learnerID int64) (string, error) {
	return h.run(ctx, learnerID, func(c *app.CourseController) string {
		if !c.NextSection(0) {
			if !c.Engine().Mounted() || c.Engine().AllSectionsCompleted() {
				return msgNoMoreSections
			}
			return app.AdvisoryCompleteSections
		}
		return ""
	})
}

// Done reports that the learner finished the current section: its media
// ended, or, for sections without media, that it was read.
func (h *LearnerCommands) Done(ctx context.Context, learnerID int64) (string, error) {
	return h.run(ctx, learnerID, func(c *app.CourseController) string {
		if _, playing := c.Engine().PlayingSection(); playing {
			c.OnMediaEnded()
			return ""
		}
		if !c.CompleteActiveSection() {
			return msgNothingToClose
		}
		return ""
	})
}

func (h *LearnerCommands) Pause(ctx context.Context, learnerID int64) (string, error) {
	return h.run(ctx, learnerID, func(c *app.CourseController) string {
		if !c.TogglePause() {
			return "No hay nada reproduciéndose."
		}
		return ""
	})
}

func (h *LearnerCommands) TOC(ctx context.Context, learnerID int64) (string, error) {
	return h.run(ctx, learnerID, func(c *app.CourseController) string {
		c.ToggleTOC()
		return ""
	})
}

func (h *LearnerCommands) Complete(ctx context.Context, learnerID int64) (string, error) {
	return h.run(ctx, learnerID, func(c *app.CourseController) string {
		if reply, ok := completePage(c); !ok {
			return reply
		}
		return "Lección completada."
	})
}

// completePage completes the current page once nothing on it is left to
// do. Pages without sections are done as soon as they are shown.
func completePage(c *app.CourseController) (string, bool) {
	page := c.State().CurrentPage()
	if page.Completed {
		return "", true
	}
	if !c.Navigator().PageReady() {
		return msgPageLoading, false
	}
	engine := c.Engine()
	if engine.Mounted() && engine.PageID() == page.ID && !engine.AllSectionsCompleted() {
		return app.AdvisoryCompleteSections, false
	}
	c.MarkCurrentPageAsCompleted(false, 0)
	return "", true
}

// SelectFromTOC handles a table-of-contents button.
func (h *LearnerCommands) SelectFromTOC(ctx context.Context, learnerID int64, data string) (string, error) {
	pageIndex, sectionID, ok := parseTOCCallback(data)
	if !ok {
		return "", fmt.Errorf("invalid toc callback data: %s", data)
	}
	return h.run(ctx, learnerID, func(c *app.CourseController) string {
		if sectionID != "" {
			if !c.NavigateToSection(pageIndex, sectionID) {
				if pageUnlocked(c.TOCTree(), pageIndex) {
					return msgSectionLocked
				}
				return msgPageLocked
			}
			return ""
		}
		if !pageUnlocked(c.TOCTree(), pageIndex) {
			return msgPageLocked
		}
		c.HideTOC()
		c.LoadPage(pageIndex)
		return ""
	})
}

func (h *LearnerCommands) CloseModal(ctx context.Context, learnerID int64) (string, error) {
	return h.run(ctx, learnerID, func(c *app.CourseController) string {
		c.CloseModal()
		return ""
	})
}

func pageUnlocked(modules []app.TOCModule, index int) bool {
	for _, m := range modules {
		for _, p := range m.Pages {
			if p.Index == index {
				return p.Unlocked
			}
		}
	}
	return false
}

// RegisterLearnerHandlers wires the learner commands into the bot.
func RegisterLearnerHandlers(ctx context.Context, b *telebot.Bot, commands *LearnerCommands, baseLogger *logrus.Entry) {
	handlerLogger := baseLogger.WithField("handler_group", "learner")

	command := func(name string, fn func(context.Context, int64) (string, error)) {
		b.Handle(name, func(c telebot.Context) error {
			senderID := c.Sender().ID
			logCtx := handlerLogger.WithField("command", name).WithField("sender_id", senderID)
			logCtx.Debug("Processing command")

			reply, err := fn(ctx, senderID)
			if err != nil {
				logCtx.WithError(err).Error("Command failed")
				return c.Send(msgError)
			}
			if reply == "" {
				return nil
			}
			return c.Send(reply)
		})
	}
	command("/start", commands.Start)
	command("/resume", commands.Resume)
	command("/next", commands.Next)
	command("/prev", commands.Previous)
	command("/continue", commands.Continue)
	command("/done", commands.Done)
	command("/pause", commands.Pause)
	command("/toc", commands.TOC)
	command("/complete", commands.Complete)

	b.Handle(telebot.OnCallback, func(c telebot.Context) error {
		data := c.Callback().Data
		senderID := c.Sender().ID

		var (
			reply string
			err   error
		)
		if data == modalCloseData {
			reply, err = commands.CloseModal(ctx, senderID)
		} else {
			reply, err = commands.SelectFromTOC(ctx, senderID, data)
		}
		if err != nil {
			c.Bot().OnError(fmt.Errorf("error processing callback %q: %w", data, err), c)
			return c.Respond(&telebot.CallbackResponse{Text: "Acción no disponible."})
		}
		return c.Respond(&telebot.CallbackResponse{Text: reply})
	})
}
