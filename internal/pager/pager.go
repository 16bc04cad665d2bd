// Package pager реализует универсальный курсорный пейджер для списочных выборок.
//
// Пейджер — конечный автомат с четырьмя состояниями: начальная загрузка,
// данные получены (возможно, есть ещё), догрузка следующей страницы
// и исчерпание. Используется админскими списками и фоновой сверкой журнала,
// чтобы не вычитывать коллекции целиком.
//
// Правило исчерпания: страниц больше нет тогда и только тогда, когда провайдер
// вернул меньше элементов, чем запрошено. Клиентский предикат Keep влияет
// только на видимый результат, но не на арифметику пагинации: полностью
// отфильтрованная страница всё равно продвигает курсор и не объявляет
// выборку исчерпанной.
package pager

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed возвращается методами загрузки после Close.
var ErrClosed = errors.New("pager is closed")

// FetchFunc загружает очередную страницу. after — последний элемент
// предыдущей страницы (nil для первой), limit — запрошенный размер страницы.
type FetchFunc[T any] func(ctx context.Context, after *T, limit int) ([]T, error)

// Config описывает параметры пейджера.
type Config[T any] struct {
	PageSize int
	Fetch    FetchFunc[T]
	// Keep — необязательный клиентский предикат видимости элемента.
	Keep func(T) bool
}

// Pager — потокобезопасный курсорный пейджер.
type Pager[T any] struct {
	mu  sync.Mutex
	cfg Config[T]

	items   []T
	cursor  *T
	hasMore bool
	started bool
	closed  bool
	lastErr error

	loading     bool
	loadingMore bool

	// gen растет при каждом Refresh/Reset/Close: ответ устаревшей загрузки,
	// пришедший после смены поколения, отбрасывается, а не применяется.
	gen int
}

// New создает пейджер. Паникует при некорректной конфигурации,
// поскольку это ошибка программирования, а не времени выполнения.
func New[T any](cfg Config[T]) *Pager[T] {
	if cfg.PageSize <= 0 {
		panic("pager: page size must be positive")
	}
	if cfg.Fetch == nil {
		panic("pager: fetch func is required")
	}
	return &Pager[T]{cfg: cfg}
}

// Load выполняет начальную загрузку первой страницы, сбрасывая курсор
// и полностью заменяя накопленный результат.
func (p *Pager[T]) Load(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	if p.loading {
		p.mu.Unlock()
		return nil
	}
	p.gen++
	gen := p.gen
	p.loading = true
	p.loadingMore = false
	p.lastErr = nil
	limit := p.cfg.PageSize
	p.mu.Unlock()

	raw, err := p.cfg.Fetch(ctx, nil, limit)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || gen != p.gen {
		return nil
	}
	p.loading = false
	if err != nil {
		p.lastErr = err
		return err
	}
	p.items = p.filter(raw)
	p.advance(raw)
	p.started = true
	return nil
}

// Refresh эквивалентен повторной начальной загрузке: результат заменяется,
// а не дополняется.
func (p *Pager[T]) Refresh(ctx context.Context) error {
	return p.Load(ctx)
}

// LoadMore догружает следующую страницу и дополняет накопленный результат.
// Вызов во время начальной загрузки, во время другой догрузки или после
// исчерпания — дешёвый no-op.
func (p *Pager[T]) LoadMore(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	if !p.started || p.loading || p.loadingMore || !p.hasMore {
		p.mu.Unlock()
		return nil
	}
	gen := p.gen
	p.loadingMore = true
	p.lastErr = nil
	cursor := p.cursor
	limit := p.cfg.PageSize
	p.mu.Unlock()

	raw, err := p.cfg.Fetch(ctx, cursor, limit)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || gen != p.gen {
		return nil
	}
	p.loadingMore = false
	if err != nil {
		p.lastErr = err
		return err
	}
	p.items = append(p.items, p.filter(raw)...)
	p.advance(raw)
	return nil
}

// Reset синхронно возвращает пейджер в исходное состояние без загрузки.
// Ответы загрузок, находящихся в полете, будут отброшены.
func (p *Pager[T]) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.gen++
	p.items = nil
	p.cursor = nil
	p.hasMore = false
	p.started = false
	p.loading = false
	p.loadingMore = false
	p.lastErr = nil
}

// Close помечает пейджер закрытым: дальнейшие загрузки запрещены,
// а результаты незавершённых не применяются.
func (p *Pager[T]) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.gen++
}

// Items возвращает копию накопленного видимого результата.
func (p *Pager[T]) Items() []T {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]T, len(p.items))
	copy(out, p.items)
	return out
}

// HasMore сообщает, может ли существовать следующая страница.
func (p *Pager[T]) HasMore() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hasMore
}

// Loading сообщает, выполняется ли начальная загрузка.
func (p *Pager[T]) Loading() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loading
}

// LoadingMore сообщает, выполняется ли догрузка следующей страницы.
func (p *Pager[T]) LoadingMore() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loadingMore
}

// Err возвращает ошибку последней загрузки.
func (p *Pager[T]) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}

// advance продвигает курсор и флаг исчерпания по сырой (неотфильтрованной)
// странице. Вызывается под мьютексом.
func (p *Pager[T]) advance(raw []T) {
	p.hasMore = len(raw) == p.cfg.PageSize
	if len(raw) > 0 {
		last := raw[len(raw)-1]
		p.cursor = &last
	}
}

func (p *Pager[T]) filter(raw []T) []T {
	if p.cfg.Keep == nil {
		return raw
	}
	kept := make([]T, 0, len(raw))
	for _, item := range raw {
		if p.cfg.Keep(item) {
			kept = append(kept, item)
		}
	}
	return kept
}
