package progress

import (
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/plugin-eval/internal/executor"
	"github.com/xkilldash9x/plugin-eval/internal/scenario"
)

// NewLogReporter logs every event through logger.
func NewLogReporter(logger *zap.Logger) *Reporter {
	log := logger.Named("progress")
	return &Reporter{
		OnStageStart: func(stage Stage, total int) {
			log.Info("Stage started.", zap.String("stage", string(stage)), zap.Int("total", total))
		},
		OnScenarioStart: func(s scenario.TestScenario, index, total int) {
			log.Debug("Scenario started.",
				zap.String("scenario_id", s.ID),
				zap.Stringer("component", s.Component),
				zap.Int("index", index), zap.Int("total", total))
		},
		OnScenarioComplete: func(r executor.ExecutionResult, index, total int) {
			fields := []zap.Field{
				zap.String("scenario_id", r.Scenario.ID),
				zap.Stringer("component", r.Scenario.Component),
				zap.String("status", string(r.Status)),
				zap.Int("index", index), zap.Int("total", total),
				zap.Duration("elapsed", r.Elapsed),
			}
			if r.Error != nil {
				fields = append(fields, zap.String("error_kind", string(r.Error.Kind)))
			}
			log.Info("Scenario completed.", fields...)
		},
		OnStageComplete: func(stage Stage, elapsed time.Duration, count int) {
			log.Info("Stage completed.", zap.String("stage", string(stage)), zap.Duration("elapsed", elapsed), zap.Int("count", count))
		},
		OnError: func(err error, s *scenario.TestScenario) {
			fields := []zap.Field{zap.Error(err)}
			if s != nil {
				fields = append(fields, zap.String("scenario_id", s.ID), zap.Stringer("component", s.Component))
			}
			log.Warn("Pipeline error.", fields...)
		},
	}
}
