package resilience

import (
	"fmt"
	"sync"
	"time"
)

// State - состояние Circuit Breaker
type State int

const (
	// StateClosed - нормальная работа, запись идет
	StateClosed State = iota

	// StateHalfOpen - проверка восстановления цели
	StateHalfOpen

	// StateOpen - цель недоступна, вызовы отклоняются
	StateOpen
)

// String - строковое представление состояния
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return fmt.Sprintf("unknown(%d)", s)
	}
}

// Counts - счетчики вызовов в текущем поколении состояния
type Counts struct {
	Requests             uint32 // Всего вызовов
	TotalSuccesses       uint32 // Всего успешных
	TotalFailures        uint32 // Всего неудачных
	ConsecutiveSuccesses uint32 // Последовательных успешных
	ConsecutiveFailures  uint32 // Последовательных неудачных
}

// Stats - снимок состояния Circuit Breaker
type Stats struct {
	State             State
	Generation        uint64
	Counts            Counts
	RunningCalls      uint32
	MaxRunningCalls   uint32
	LastStateChange   time.Time
	StateChanges      map[State]int
	TimeUntilHalfOpen time.Duration
}

// stateManager - машина состояний Circuit Breaker.
// generation растет при каждой смене состояния: результаты вызовов,
// начатых в прошлом поколении, игнорируются.
type stateManager struct {
	mu              sync.RWMutex
	state           State
	generation      uint64
	counts          Counts
	expiry          time.Time // Когда истекает Open состояние
	config          Config
	runningCalls    uint32
	maxRunningCalls uint32
	lastStateChange time.Time
	stateChanges    map[State]int
}

func newStateManager(config Config) *stateManager {
	return &stateManager{
		state:           StateClosed,
		config:          config,
		lastStateChange: time.Now(),
		stateChanges:    make(map[State]int),
	}
}

// getState - текущее состояние с учетом истекшего Open:
// просроченный Open переводится в Half-Open прямо при чтении,
// иначе WaitUntilReady не увидел бы перехода без внешних вызовов.
func (sm *stateManager) getState() State {
	sm.mu.RLock()
	state := sm.state
	expired := state == StateOpen && time.Now().After(sm.expiry)
	sm.mu.RUnlock()

	if !expired {
		return state
	}

	sm.mu.Lock()
	defer sm.mu.Unlock()
	if sm.state == StateOpen && time.Now().After(sm.expiry) {
		sm.transitionLocked(StateHalfOpen)
	}
	return sm.state
}

// transitionLocked - переход в новое состояние. Счетчики обнуляются,
// поколение растет. Вызывается только под взятым lock.
func (sm *stateManager) transitionLocked(newState State) {
	if sm.state == newState {
		return
	}

	oldState := sm.state
	sm.state = newState
	sm.generation++
	sm.counts = Counts{}
	sm.lastStateChange = time.Now()
	sm.stateChanges[newState]++

	if newState == StateOpen {
		sm.expiry = time.Now().Add(sm.config.Timeout)
	}

	// Callback вне lock
	if sm.config.OnStateChange != nil {
		go sm.config.OnStateChange(sm.config.Name, oldState, newState)
	}
}

// beforeRequest - вызывается перед выполнением вызова.
// Возвращает поколение, в котором вызов стартовал.
func (sm *stateManager) beforeRequest() (uint64, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	// Истекший Open переводим в Half-Open
	if sm.state == StateOpen && time.Now().After(sm.expiry) {
		sm.transitionLocked(StateHalfOpen)
	}

	if sm.state == StateOpen {
		return sm.generation, ErrCircuitOpen
	}

	// Лимит одновременных вызовов
	if sm.config.MaxConcurrentCalls > 0 && sm.runningCalls >= sm.config.MaxConcurrentCalls {
		return sm.generation, ErrTooManyCalls
	}

	sm.runningCalls++
	if sm.runningCalls > sm.maxRunningCalls {
		sm.maxRunningCalls = sm.runningCalls
	}

	return sm.generation, nil
}

// afterRequest - вызывается после завершения вызова
func (sm *stateManager) afterRequest(generation uint64, success bool) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.runningCalls > 0 {
		sm.runningCalls--
	}

	// Состояние сменилось пока вызов выполнялся - результат устарел
	if generation != sm.generation {
		return
	}

	if success {
		sm.onSuccess()
	} else {
		sm.onFailure()
	}
}

func (sm *stateManager) onSuccess() {
	sm.counts.Requests++
	sm.counts.TotalSuccesses++
	sm.counts.ConsecutiveSuccesses++
	sm.counts.ConsecutiveFailures = 0

	if sm.state == StateHalfOpen &&
		sm.counts.ConsecutiveSuccesses >= sm.config.SuccessThreshold {
		sm.transitionLocked(StateClosed)
	}
}

func (sm *stateManager) onFailure() {
	sm.counts.Requests++
	sm.counts.TotalFailures++
	sm.counts.ConsecutiveFailures++
	sm.counts.ConsecutiveSuccesses = 0

	switch sm.state {
	case StateClosed:
		if sm.shouldTrip() {
			sm.transitionLocked(StateOpen)
		}

	case StateHalfOpen:
		// Любая ошибка в Half-Open возвращает в Open
		sm.transitionLocked(StateOpen)
	}
}

// shouldTrip - проверка нужно ли открыть circuit
func (sm *stateManager) shouldTrip() bool {
	if sm.config.ShouldTrip != nil {
		return sm.config.ShouldTrip(sm.counts)
	}

	// Стандартная логика: серия последовательных ошибок
	return sm.counts.ConsecutiveFailures >= sm.config.MaxFailures
}

func (sm *stateManager) getCounts() Counts {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.counts
}

func (sm *stateManager) getStats() Stats {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	changes := make(map[State]int, len(sm.stateChanges))
	for k, v := range sm.stateChanges {
		changes[k] = v
	}

	return Stats{
		State:             sm.state,
		Generation:        sm.generation,
		Counts:            sm.counts,
		RunningCalls:      sm.runningCalls,
		MaxRunningCalls:   sm.maxRunningCalls,
		LastStateChange:   sm.lastStateChange,
		StateChanges:      changes,
		TimeUntilHalfOpen: sm.timeUntilHalfOpen(),
	}
}

// timeUntilHalfOpen - сколько осталось до выхода из Open
func (sm *stateManager) timeUntilHalfOpen() time.Duration {
	if sm.state != StateOpen {
		return 0
	}

	remaining := time.Until(sm.expiry)
	if remaining < 0 {
		return 0
	}

	return remaining
}

// reset - принудительный возврат в Closed без вызова callback
func (sm *stateManager) reset() {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	sm.state = StateClosed
	sm.generation++
	sm.counts = Counts{}
	sm.expiry = time.Time{}
	sm.runningCalls = 0
	sm.lastStateChange = time.Now()
}
