package knowledge

import (
	"fmt"

	"github.com/labrag/backend-go/internal/logger"
	"go.uber.org/zap"
)

// IngestStage 摄取流水线阶段
type IngestStage string

const (
	StageReceived IngestStage = "received"
	StageParsed   IngestStage = "parsed"
	StageChunked  IngestStage = "chunked"
	StageEnriched IngestStage = "enriched"
	StageEmbedded IngestStage = "embedded"
	StageStored   IngestStage = "stored"
	StageComplete IngestStage = "complete"
	StageFailed   IngestStage = "failed"
)

// 阶段转换规则：流水线单向推进，任意阶段可进入failed
var ingestTransitions = map[IngestStage][]IngestStage{
	StageReceived: {StageParsed, StageFailed},
	StageParsed:   {StageChunked, StageFailed},
	StageChunked:  {StageEnriched, StageFailed},
	StageEnriched: {StageEmbedded, StageFailed},
	StageEmbedded: {StageStored, StageFailed},
	StageStored:   {StageComplete, StageFailed},
}

// IngestStateMachine 摄取状态机，跟踪单个文档的流水线进度
type IngestStateMachine struct {
	documentID string
	current    IngestStage
}

// NewIngestStateMachine 创建处于received阶段的状态机
func NewIngestStateMachine(documentID string) *IngestStateMachine {
	return &IngestStateMachine{documentID: documentID, current: StageReceived}
}

// Current 当前阶段
func (sm *IngestStateMachine) Current() IngestStage {
	return sm.current
}

// CanTransition 检查是否可以进行阶段转换
func (sm *IngestStateMachine) CanTransition(to IngestStage) bool {
	for _, next := range ingestTransitions[sm.current] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition 执行阶段转换
func (sm *IngestStateMachine) Transition(to IngestStage) error {
	if !sm.CanTransition(to) {
		return fmt.Errorf("invalid transition from %s to %s", sm.current, to)
	}
	logger.Debug("摄取阶段推进",
		zap.String("document_id", sm.documentID),
		zap.String("from", string(sm.current)),
		zap.String("to", string(to)))
	sm.current = to
	return nil
}

// FailureReport 摄取失败报告，记录失败阶段与原因
type FailureReport struct {
	DocumentID string      `json:"document_id"`
	Filename   string      `json:"filename"`
	Stage      IngestStage `json:"stage"`
	Cause      error       `json:"-"`
}

func (r *FailureReport) Error() string {
	return fmt.Sprintf("文档摄取在%s阶段失败: %s: %v", r.Stage, r.Filename, r.Cause)
}

func (r *FailureReport) Unwrap() error {
	return r.Cause
}
