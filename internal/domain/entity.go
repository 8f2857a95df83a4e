package domain

import (
	"fmt"
	"time"
)

// EntityRef идентифицирует объект каталога: непрозрачный тег вида (product, chunk, image) и ID.
type EntityRef struct {
	Kind string
	ID   string
}

func NewEntityRef(kind, id string) EntityRef {
	return EntityRef{Kind: kind, ID: id}
}

// Key возвращает строковый ключ "kind:id" для map и кэшей.
func (r EntityRef) Key() string {
	return fmt.Sprintf("%s:%s", r.Kind, r.ID)
}

func (r EntityRef) IsZero() bool {
	return r.Kind == "" || r.ID == ""
}

// EntityFields — канонические поля сущности, из которых собираются входы генерации.
// Таблицу entities наполняют внешние коллабораторы (пайплайн документов, админка).
type EntityFields struct {
	Ref              EntityRef
	Name             string
	Description      string
	Category         string
	PriceCents       int64
	ImageKey         string // ключ объекта в MinIO с каноническим изображением
	Colors           []string
	TextureLabel     string
	ApplicationLabel string
	CreatedAt        time.Time
}

// Candidate — сущность, прошедшая несемантическую фильтрацию и допущенная к скорингу.
type Candidate struct {
	Ref        EntityRef
	Category   string
	PriceCents int64
	CreatedAt  time.Time
}
