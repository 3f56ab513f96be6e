package sequencer

import (
	"fmt"
	"io"
	"strings"
	"sync"
)

// Overrides - значения, подменяющие записи EFS файла при загрузке.
// nil - значение не задано, используется запись файла.
type Overrides struct {
	MU          *float64
	DoseRate    *float64
	PatientID   *string
	PatientName *string
}

// Field - элемент очереди: отображаемое имя, путь к EFS и подмены.
type Field struct {
	Name      string
	Filename  string
	Overrides Overrides
}

// Snapshot - копия состояния очереди.
type Snapshot struct {
	Fields  []Field
	Cursor  int
	Playing bool
}

// Playlist - очередь полей с курсором и флагом воспроизведения.
// Каждое изменение закрывает канал Changed и создает новый.
type Playlist struct {
	mu      sync.Mutex
	fields  []Field
	cursor  int
	playing bool
	changed chan struct{}
}

// NewPlaylist создает пустую остановленную очередь.
func NewPlaylist() *Playlist {
	return &Playlist{changed: make(chan struct{})}
}

// notify вызывается под p.mu.
func (p *Playlist) notify() {
	close(p.changed)
	p.changed = make(chan struct{})
}

// Changed возвращает канал, который закроется при следующем изменении.
func (p *Playlist) Changed() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.changed
}

// Append добавляет поля в конец очереди.
func (p *Playlist) Append(fields ...Field) {
	if len(fields) == 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fields = append(p.fields, fields...)
	p.notify()
}

// Clear очищает очередь и сбрасывает курсор. Флаг воспроизведения не меняется.
func (p *Playlist) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fields = nil
	p.cursor = 0
	p.notify()
}

// Len возвращает число полей.
func (p *Playlist) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.fields)
}

// Cursor возвращает позицию курсора.
func (p *Playlist) Cursor() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cursor
}

// Snapshot возвращает копию очереди.
func (p *Playlist) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	fields := make([]Field, len(p.fields))
	copy(fields, p.fields)
	return Snapshot{Fields: fields, Cursor: p.cursor, Playing: p.playing}
}

// Next возвращает поле под курсором, если очередь воспроизводится.
// Курсор за концом очереди означает, что очередь пройдена: она очищается.
func (p *Playlist) Next() (Field, int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.playing {
		return Field{}, 0, false
	}
	if p.cursor >= len(p.fields) {
		if len(p.fields) > 0 || p.cursor != 0 {
			p.fields = nil
			p.cursor = 0
			p.notify()
		}
		return Field{}, 0, false
	}
	return p.fields[p.cursor], p.cursor, true
}

// AdvanceFrom сдвигает курсор на одну позицию, если он все еще указывает на idx.
// Если за курсором полей больше нет, очередь очищается и курсор сбрасывается в 0.
func (p *Playlist) AdvanceFrom(idx int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cursor != idx {
		return false
	}
	p.cursor++
	if p.cursor >= len(p.fields) {
		p.fields = nil
		p.cursor = 0
	}
	p.notify()
	return true
}

// SetCursor устанавливает курсор. Отрицательные значения приводятся к 0.
func (p *Playlist) SetCursor(idx int) {
	if idx < 0 {
		idx = 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cursor = idx
	p.notify()
}

// Play устанавливает флаг воспроизведения.
func (p *Playlist) Play() {
	p.setPlaying(true)
}

// Pause снимает флаг воспроизведения.
func (p *Playlist) Pause() {
	p.setPlaying(false)
}

func (p *Playlist) setPlaying(v bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.playing == v {
		return
	}
	p.playing = v
	p.notify()
}

// Playing сообщает, установлен ли флаг воспроизведения.
func (p *Playlist) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

// Print выводит очередь с маркером курсора.
func (p *Playlist) Print(w io.Writer) error {
	s := p.Snapshot()
	state := "Waiting"
	if s.Playing {
		state = "Playing"
	}
	if _, err := fmt.Fprintf(w, "%s\n\n", state); err != nil {
		return err
	}
	for i, f := range s.Fields {
		marker := "\t "
		if i == s.Cursor {
			marker = ">\t"
		}
		if _, err := fmt.Fprintf(w, "%s%s\n", marker, f.Name); err != nil {
			return err
		}
	}
	return nil
}

func (p *Playlist) String() string {
	var b strings.Builder
	_ = p.Print(&b)
	return b.String()
}
