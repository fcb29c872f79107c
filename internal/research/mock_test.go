package research

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/lens-cli/internal/llm"
	"github.com/sells-group/lens-cli/internal/model"
)

// --- Linker Mock ---

type mockLinker struct {
	mock.Mock
}

func (m *mockLinker) LinkEvidenceToResearchStructure(ctx context.Context, in llm.LinkInput) (*llm.LinkOutput, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*llm.LinkOutput), args.Error(1)
}

// --- Participant Lister Mock ---

type mockParticipantLister struct {
	mock.Mock
}

func (m *mockParticipantLister) ListParticipants(ctx context.Context, interviewID string) ([]model.Participant, error) {
	args := m.Called(ctx, interviewID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Participant), args.Error(1)
}
