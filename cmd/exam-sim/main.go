// Command exam-sim drives one exam session headlessly against a running
// server, answering questions the way a candidate would.
package main

import (
	"context"
	"flag"
	"math/rand/v2"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/talentgate/exam-backend/internal/config"
	"github.com/talentgate/exam-backend/internal/countdown"
	"github.com/talentgate/exam-backend/internal/examclient"
	"github.com/talentgate/exam-backend/internal/integrity"
	"github.com/talentgate/exam-backend/internal/logger"
	"github.com/talentgate/exam-backend/internal/session"
)

func main() {
	cfg := config.Load()

	var (
		token       string
		baseURL     string
		answerDelay time.Duration
		skipRate    float64
		violateAt   int
		seed        uint64
	)
	flag.StringVar(&token, "token", "", "Candidate assignment token (required)")
	flag.StringVar(&baseURL, "base-url", cfg.ExamAPIBaseURL, "Exam API root")
	flag.DurationVar(&answerDelay, "answer-delay", 2*time.Second, "Think time before each answer")
	flag.Float64Var(&skipRate, "skip-rate", 0.1, "Probability of skipping a question")
	flag.IntVar(&violateAt, "violate-at", -1, "Question index at which to hide the page, -1 for never")
	flag.Uint64Var(&seed, "seed", uint64(time.Now().UnixNano()), "Random seed")
	flag.Parse()

	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	if token == "" {
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := examclient.New(baseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid base url")
	}

	// ─── Verify and Start ──────────────────────────────────────────────
	if err := client.VerifyToken(ctx, token); err != nil {
		log.Fatal().Err(err).Msg("Token rejected")
	}
	info, err := client.StartExam(ctx, token)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to start exam")
	}
	log.Info().
		Str("exam", info.Title).
		Str("candidate", info.CandidateName).
		Int("questions", info.QuestionCount).
		Msg("Exam started")

	// ─── Run Session ───────────────────────────────────────────────────
	sess := session.New(token, client, session.Options{
		AutoSubmitDelay:  cfg.AutoSubmitDelay,
		DefaultTimeLimit: int(cfg.DefaultQuestionTimeLimit / time.Second),
		Logger:           log,
		OnChange: func(s session.Snapshot) {
			log.Debug().Str("state", string(s.State)).Int("index", s.Index).Int("total", s.Total).Msg("State")
		},
		OnTick: func(s countdown.Snapshot) {
			if s.Level == countdown.LevelCritical {
				log.Debug().Str("question", s.Key).Int("left", s.Left).Msg("Time running out")
			}
		},
	})
	defer sess.Close()
	monitor := integrity.NewMonitor(token, sess, integrity.WithLogger(log))

	if err := sess.Load(ctx); err != nil {
		log.Fatal().Err(err).Msg("Exam blocked")
	}

	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	drive(ctx, sess, monitor, rng, answerDelay, skipRate, violateAt, log)

	select {
	case <-sess.Done():
	case <-ctx.Done():
		log.Warn().Msg("Interrupted before the exam finished")
		return
	}

	final := sess.Snapshot()
	ev := log.Info().
		Str("state", string(final.State)).
		Str("submission_type", string(final.SubmissionType)).
		Str("reason", final.Reason).
		Int("answered", len(final.Responses)).
		Int("skipped", len(final.Skipped))
	if final.Assumed {
		ev = ev.Bool("assumed", true)
	}
	ev.Msg("Exam finished")
}

// drive answers questions until the session leaves IN_PROGRESS. The
// countdown keeps running underneath, so a slow answer may land on a later
// question than the one it was chosen for.
func drive(
	ctx context.Context,
	sess *session.Session,
	monitor *integrity.Monitor,
	rng *rand.Rand,
	delay time.Duration,
	skipRate float64,
	violateAt int,
	log zerolog.Logger,
) {
	for {
		select {
		case <-sess.Done():
			return
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}

		snap := sess.Snapshot()
		if snap.State != session.StateInProgress || snap.Question == nil {
			// Submitting: wait for Done.
			continue
		}

		if snap.Index == violateAt {
			res, err := monitor.Handle(ctx, integrity.BrowserEvent{
				Kind:       string(integrity.KindVisibilityChange),
				Visibility: "hidden",
			})
			if err != nil {
				log.Warn().Err(err).Msg("Integrity trigger failed")
			}
			log.Info().Str("reason", string(res.Reason)).Bool("submitted", res.Submitted).Msg("Page hidden")
			continue
		}

		if err := act(sess, snap, rng, skipRate); err != nil {
			log.Debug().Err(err).Int("index", snap.Index).Msg("Action rejected")
		}
	}
}

func act(sess *session.Session, snap session.Snapshot, rng *rand.Rand, skipRate float64) error {
	q := snap.Question
	if len(q.Options) == 0 || rng.Float64() < skipRate {
		return sess.Skip()
	}

	choice := q.Options[rng.IntN(len(q.Options))]
	if err := sess.Select(q.ID, &choice); err != nil {
		return err
	}
	if snap.IsLast {
		return sess.Submit()
	}
	return sess.Next()
}
