package chat

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rajivgeraev/geoswap-api/internal/models"
)

func makeMessage(sender uuid.UUID, content string) models.Message {
	return models.Message{
		ID:        uuid.New(),
		ChatID:    uuid.New(),
		SenderID:  sender,
		Content:   content,
		CreatedAt: time.Now(),
	}
}

// История приходит от новых сообщений к старым, как в SQL-запросе
func TestScanRateHistory_FindsLatestProposal(t *testing.T) {
	buyer := uuid.New()

	older := models.RateEvent{Kind: models.RateKindProposed, ProposalID: "p-1", Amount: 300}
	newer := models.RateEvent{Kind: models.RateKindProposed, ProposalID: "p-2", Amount: 450}

	messages := []models.Message{
		makeMessage(buyer, models.EncodeRateEvent(newer)),
		makeMessage(buyer, "обычное сообщение"),
		makeMessage(buyer, models.EncodeRateEvent(older)),
	}

	state := scanRateHistory(messages, "")
	require.NotNil(t, state)
	assert.Equal(t, "p-2", state.ProposalID)
	assert.Equal(t, 450.0, state.Amount)
	assert.Equal(t, buyer, state.ProposerID)
	assert.False(t, state.Resolved)
}

func TestScanRateHistory_NoProposal(t *testing.T) {
	buyer := uuid.New()

	messages := []models.Message{
		makeMessage(buyer, "привет"),
		makeMessage(buyer, "вещь еще доступна?"),
	}

	assert.Nil(t, scanRateHistory(messages, ""))
}

func TestScanRateHistory_EmptyHistory(t *testing.T) {
	assert.Nil(t, scanRateHistory(nil, ""))
}

// Терминальное событие с тем же proposalId помечает предложение разрешенным
func TestScanRateHistory_ResolvedProposal(t *testing.T) {
	buyer := uuid.New()
	seller := uuid.New()

	proposal := models.RateEvent{Kind: models.RateKindProposed, ProposalID: "p-1", Amount: 300}
	accepted := models.RateEvent{Kind: models.RateKindAccepted, ProposalID: "p-1", Amount: 300}

	messages := []models.Message{
		makeMessage(seller, models.EncodeRateEvent(accepted)),
		makeMessage(buyer, models.EncodeRateEvent(proposal)),
	}

	state := scanRateHistory(messages, "")
	require.NotNil(t, state)
	assert.True(t, state.Resolved)
}

// Терминальное событие другого предложения не задевает новое
func TestScanRateHistory_UnrelatedResolution(t *testing.T) {
	buyer := uuid.New()
	seller := uuid.New()

	rejectedOld := models.RateEvent{Kind: models.RateKindRejected, ProposalID: "p-1", Amount: 300}
	newProposal := models.RateEvent{Kind: models.RateKindProposed, ProposalID: "p-2", Amount: 500}

	messages := []models.Message{
		makeMessage(buyer, models.EncodeRateEvent(newProposal)),
		makeMessage(seller, models.EncodeRateEvent(rejectedOld)),
	}

	state := scanRateHistory(messages, "")
	require.NotNil(t, state)
	assert.Equal(t, "p-2", state.ProposalID)
	assert.False(t, state.Resolved)
}

// Явный proposal_id находит именно это предложение, а не последнее
func TestScanRateHistory_TargetedProposal(t *testing.T) {
	buyer := uuid.New()

	older := models.RateEvent{Kind: models.RateKindProposed, ProposalID: "p-1", Amount: 300}
	newer := models.RateEvent{Kind: models.RateKindProposed, ProposalID: "p-2", Amount: 450}

	messages := []models.Message{
		makeMessage(buyer, models.EncodeRateEvent(newer)),
		makeMessage(buyer, models.EncodeRateEvent(older)),
	}

	state := scanRateHistory(messages, "p-1")
	require.NotNil(t, state)
	assert.Equal(t, "p-1", state.ProposalID)
	assert.Equal(t, 300.0, state.Amount)

	assert.Nil(t, scanRateHistory(messages, "p-404"))
}

// Перечитанная под блокировкой история с терминальным событием означает,
// что параллельный ответ уже победил: второй получает конфликт
func TestEnsureUnresolved_ConcurrentResponseLoses(t *testing.T) {
	buyer := uuid.New()
	seller := uuid.New()

	proposal := models.RateEvent{Kind: models.RateKindProposed, ProposalID: "p-1", Amount: 300}
	accepted := models.RateEvent{Kind: models.RateKindAccepted, ProposalID: "p-1", Amount: 300}

	// До блокировки: предложение открыто
	before := []models.Message{
		makeMessage(buyer, models.EncodeRateEvent(proposal)),
	}
	state, err := ensureUnresolved(before, "p-1")
	require.NoError(t, err)
	assert.Equal(t, "p-1", state.ProposalID)

	// После победившего ответа: терминальное событие уже в истории
	after := []models.Message{
		makeMessage(seller, models.EncodeRateEvent(accepted)),
		makeMessage(buyer, models.EncodeRateEvent(proposal)),
	}
	_, err = ensureUnresolved(after, "p-1")
	assert.ErrorIs(t, err, errProposalResolved)
}

// Исчезнувшее из окна предложение тоже конфликт, а не новая попытка
func TestEnsureUnresolved_ProposalVanished(t *testing.T) {
	_, err := ensureUnresolved(nil, "p-1")
	assert.ErrorIs(t, err, errProposalResolved)
}

// Кривое событие в истории не ломает сканирование
func TestScanRateHistory_MalformedEventIgnored(t *testing.T) {
	buyer := uuid.New()

	proposal := models.RateEvent{Kind: models.RateKindProposed, ProposalID: "p-1", Amount: 300}

	messages := []models.Message{
		makeMessage(buyer, models.RateEventPrefix+"{broken json"),
		makeMessage(buyer, models.EncodeRateEvent(proposal)),
	}

	state := scanRateHistory(messages, "")
	require.NotNil(t, state)
	assert.Equal(t, "p-1", state.ProposalID)
}
