package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/logger"

	"luckydraw/internal/draw"
	"luckydraw/internal/history"
	"luckydraw/internal/models"
	"luckydraw/internal/presenter"
	"luckydraw/internal/storage"
	"luckydraw/internal/theme"
)

var (
	// ErrDrawInProgress is returned when a tenant starts a draw or edits its
	// pool while a draw has not finished.
	ErrDrawInProgress = errors.New("上一次抽獎尚未完成")
	// ErrClearNotConfirmed is returned when history clearing was not confirmed.
	ErrClearNotConfirmed = errors.New("清除歷史紀錄需要確認")
)

// LotterySession is the application state of one tenant.
type LotterySession struct {
	slot    storage.Store
	History *history.Store

	// drawing serializes draws and pool edits; a second one fails fast
	// instead of waiting.
	drawing sync.Mutex

	mu           sync.Mutex
	participants string // the live pool, one name per line
	LastActivity time.Time
}

// Participants returns the pool text of the session.
func (s *LotterySession) Participants() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.participants
}

func (s *LotterySession) touch(now time.Time) {
	s.mu.Lock()
	s.LastActivity = now
	s.mu.Unlock()
}

func (s *LotterySession) lastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.LastActivity
}

func (s *LotterySession) saveParticipants(ctx context.Context, text string) error {
	if err := s.slot.Set(ctx, storage.KeyParticipants, text); err != nil {
		return fmt.Errorf("save participants: %w", err)
	}
	s.mu.Lock()
	s.participants = text
	s.mu.Unlock()
	return nil
}

// LotteryService manages the sessions of every tenant.
type LotteryService struct {
	mu        sync.RWMutex
	sessions  map[string]*LotterySession // Key: tenantID
	backend   storage.Backend
	presenter presenter.Presenter
	now       func() time.Time
}

// NewLotteryService creates a LotteryService persisting to backend and
// revealing winners through p. A nil p discards reveals.
func NewLotteryService(backend storage.Backend, p presenter.Presenter) *LotteryService {
	if p == nil {
		p = presenter.Nop{}
	}
	return &LotteryService{
		sessions:  make(map[string]*LotterySession),
		backend:   backend,
		presenter: p,
		now:       time.Now,
	}
}

// getSession returns the session of a tenant, loading it from storage on first use.
func (s *LotteryService) getSession(ctx context.Context, tenantID string) (*LotterySession, error) {
	s.mu.RLock()
	session, exists := s.sessions[tenantID]
	s.mu.RUnlock()
	if exists {
		session.touch(s.now())
		return session, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if session, exists := s.sessions[tenantID]; exists {
		session.touch(s.now())
		return session, nil
	}

	slot := s.backend.Slot(tenantID)
	hist := history.New(slot)
	if err := hist.Load(ctx); err != nil {
		return nil, err
	}
	participants, _, err := slot.Get(ctx, storage.KeyParticipants)
	if err != nil {
		return nil, fmt.Errorf("load participants: %w", err)
	}

	session = &LotterySession{
		slot:         slot,
		History:      hist,
		participants: participants,
		LastActivity: s.now(),
	}
	s.sessions[tenantID] = session
	return session, nil
}

// DrawRequest carries the raw form values of a draw.
type DrawRequest struct {
	// Participants replaces the stored pool when non-nil.
	Participants *string
	Count        string
	Seed         string
	Prize        string
	AllowRepeat  bool
}

// DrawResult is what a committed draw reports back.
type DrawResult struct {
	Record        models.DrawRecord
	SeedGenerated bool
	Remaining     []models.Participant
}

// Draw validates the request, shuffles, commits a history record and reveals
// the winners. User input failures leave history and pool untouched.
func (s *LotteryService) Draw(ctx context.Context, tenantID string, req DrawRequest) (*DrawResult, error) {
	session, err := s.getSession(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	if !session.drawing.TryLock() {
		return nil, ErrDrawInProgress
	}
	defer session.drawing.Unlock()

	poolText := session.Participants()
	if req.Participants != nil {
		poolText = *req.Participants
	}

	participants, winnerCount, err := draw.Validate(poolText, req.Count, req.AllowRepeat)
	if err != nil {
		return nil, err
	}

	now := s.now()
	seed, generated := draw.ResolveSeed(req.Seed, now)
	cfg := models.DrawConfig{
		Participants: participants,
		Seed:         seed,
		WinnerCount:  winnerCount,
		AllowRepeat:  req.AllowRepeat,
		PrizeLabel:   draw.ResolvePrize(req.Prize),
	}

	winners := draw.Run(cfg)
	record := draw.NewRecord(cfg, winners, now)

	remaining, nextPool := participants, poolText
	if !cfg.AllowRepeat {
		remaining = draw.ReducePool(participants, winners)
		nextPool = draw.JoinParticipants(remaining)
	}

	// Commit writes ignore request cancellation.
	commitCtx := context.WithoutCancel(ctx)

	previous := session.Participants()
	if err := session.saveParticipants(commitCtx, nextPool); err != nil {
		logger.Errorf("Draw for tenant %s failed: %v", tenantID, err)
		return nil, err
	}
	if err := session.History.Append(commitCtx, record); err != nil {
		logger.Errorf("Draw for tenant %s failed: %v", tenantID, err)
		if rbErr := session.saveParticipants(commitCtx, previous); rbErr != nil {
			logger.Errorf("Restoring participants for tenant %s failed: %v", tenantID, rbErr)
		}
		return nil, err
	}

	logger.Infof("Draw committed: tenant=%s prize=%s seed=%s winners=%v", tenantID, record.Prize, record.Seed, record.Winners)

	reveal := presenter.Reveal{Prize: record.Prize, Seed: record.Seed, Winners: record.Winners}
	if err := s.presenter.Present(ctx, tenantID, reveal); err != nil {
		logger.Warningf("Presenting winners for tenant %s failed: %v", tenantID, err)
	}

	return &DrawResult{
		Record:        record,
		SeedGenerated: generated,
		Remaining:     remaining,
	}, nil
}

// Replay recomputes the winners a seed produces for a participant list, so a
// past record can be checked.
func (s *LotteryService) Replay(participantsText, seed, count string) ([]models.Participant, error) {
	participants, winnerCount, err := draw.Validate(participantsText, count, true)
	if err != nil {
		return nil, err
	}
	return draw.Run(models.DrawConfig{Participants: participants, Seed: seed, WinnerCount: winnerCount}), nil
}

// GetParticipants returns the live pool of a tenant.
func (s *LotteryService) GetParticipants(ctx context.Context, tenantID string) ([]models.Participant, error) {
	session, err := s.getSession(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return draw.ParseParticipants(session.Participants()), nil
}

// SetParticipants replaces the pool text of a tenant.
func (s *LotteryService) SetParticipants(ctx context.Context, tenantID, text string) ([]models.Participant, error) {
	session, err := s.getSession(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if !session.drawing.TryLock() {
		return nil, ErrDrawInProgress
	}
	defer session.drawing.Unlock()

	if err := session.saveParticipants(ctx, text); err != nil {
		return nil, err
	}
	return draw.ParseParticipants(text), nil
}

// AddParticipants appends names to the pool of a tenant.
func (s *LotteryService) AddParticipants(ctx context.Context, tenantID string, names []string) ([]models.Participant, error) {
	session, err := s.getSession(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if !session.drawing.TryLock() {
		return nil, ErrDrawInProgress
	}
	defer session.drawing.Unlock()

	pool := append(draw.ParseParticipants(session.Participants()), draw.ParseParticipants(draw.JoinParticipants(names))...)
	if err := session.saveParticipants(ctx, draw.JoinParticipants(pool)); err != nil {
		return nil, err
	}
	return pool, nil
}

// GetHistory returns the full history of a tenant, newest first.
func (s *LotteryService) GetHistory(ctx context.Context, tenantID string) ([]models.DrawRecord, error) {
	session, err := s.getSession(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return session.History.Records(), nil
}

// HistoryPage returns one page of the history filtered by prize.
func (s *LotteryService) HistoryPage(ctx context.Context, tenantID, prize string, page int) (history.Page, error) {
	session, err := s.getSession(ctx, tenantID)
	if err != nil {
		return history.Page{}, err
	}
	if prize == "" {
		prize = history.FilterAll
	}
	return session.History.SelectPage(prize, page), nil
}

// PrizeOptions returns the prize filter choices, FilterAll first.
func (s *LotteryService) PrizeOptions(ctx context.Context, tenantID string) ([]string, error) {
	session, err := s.getSession(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return append([]string{history.FilterAll}, session.History.Prizes()...), nil
}

// ClearHistory empties a tenant's history once the user has confirmed.
func (s *LotteryService) ClearHistory(ctx context.Context, tenantID string, confirmed bool) error {
	if !confirmed {
		return ErrClearNotConfirmed
	}
	session, err := s.getSession(ctx, tenantID)
	if err != nil {
		return err
	}
	if err := session.History.Clear(ctx); err != nil {
		return err
	}
	logger.Infof("Cleared history for tenant: %s", tenantID)
	return nil
}

// Theme returns the theme of a tenant.
func (s *LotteryService) Theme(ctx context.Context, tenantID string, systemPrefersDark bool) (models.Theme, error) {
	session, err := s.getSession(ctx, tenantID)
	if err != nil {
		return "", err
	}
	return theme.Load(ctx, session.slot, systemPrefersDark)
}

// ToggleTheme flips and saves the theme of a tenant.
func (s *LotteryService) ToggleTheme(ctx context.Context, tenantID string, systemPrefersDark bool) (models.Theme, error) {
	session, err := s.getSession(ctx, tenantID)
	if err != nil {
		return "", err
	}
	return theme.Toggle(ctx, session.slot, systemPrefersDark)
}

// CleanUpInactiveSessions drops in-memory sessions idle for longer than ttl.
// Persisted data stays and is reloaded on the tenant's next request.
func (s *LotteryService) CleanUpInactiveSessions(ttl time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	now := s.now()
	for tenantID, session := range s.sessions {
		if now.Sub(session.lastActivity()) > ttl {
			delete(s.sessions, tenantID)
			removed++
		}
	}
	return removed
}

// ClearSession removes all data associated with a specific tenant.
func (s *LotteryService) ClearSession(ctx context.Context, tenantID string) error {
	s.mu.Lock()
	delete(s.sessions, tenantID)
	s.mu.Unlock()

	if err := s.backend.Delete(ctx, tenantID); err != nil {
		return err
	}
	logger.Infof("Cleared session for tenant: %s", tenantID)
	return nil
}
