package steps

import (
	"fmt"
	"sort"
	"sync"
)

// Registry — реестр видов task.
//
// Позволяет регистрировать и получать Kind по типу task chain.
// Потокобезопасен.
type Registry struct {
	mu    sync.RWMutex
	kinds map[string]Kind
}

// NewRegistry создаёт пустой реестр.
func NewRegistry() *Registry {
	return &Registry{
		kinds: make(map[string]Kind),
	}
}

// DefaultRegistry создаёт реестр со всеми видами task движка.
func DefaultRegistry() *Registry {
	r := NewRegistry()

	r.Register(newKind[StartUpParams]("StartUp", "Start Up"))
	r.Register(newKind[CloseDownParams]("CloseDown", "Close Down"))
	r.Register(newKind[FightParams]("Fight", "Fight"))
	r.Register(newKind[RecruitParams]("Recruit", "Recruit"))
	r.Register(newKind[InfrastParams]("Infrast", "Base Shifts"))
	r.Register(newKind[MallParams]("Mall", "Credit Store"))
	r.Register(newKind[AwardParams]("Award", "Collect Rewards"))
	r.Register(newKind[RoguelikeParams]("Roguelike", "Integrated Strategies"))
	r.Register(newKind[ReclamationParams]("Reclamation", "Reclamation Algorithm"))

	return r
}

// Register регистрирует вид в реестре.
// Если вид с таким типом уже существует, он будет перезаписан.
func (r *Registry) Register(k Kind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.kinds[k.Type()] = k
}

// Get возвращает вид по типу.
// Возвращает ErrUnknownKind, если вид не найден.
func (r *Registry) Get(typ string) (Kind, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	k, exists := r.kinds[typ]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, typ)
	}
	return k, nil
}

// Has проверяет, зарегистрирован ли вид.
func (r *Registry) Has(typ string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.kinds[typ]
	return exists
}

// Types возвращает отсортированный список типов.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.kinds))
	for t := range r.kinds {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Count возвращает количество зарегистрированных видов.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.kinds)
}

// Unregister удаляет вид из реестра.
func (r *Registry) Unregister(typ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.kinds, typ)
}
