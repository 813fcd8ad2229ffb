package models

import (
	"time"
)

// CompanionsTable is the table companions are persisted in
const CompanionsTable = "companions"

// Companion is a configurable learning companion created by a user.
// Author is set server-side from the verified identity and is null only
// when anonymous creation is allowed.
type Companion struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Name      string    `json:"name" gorm:"not null"`
	Subject   string    `json:"subject" gorm:"not null;index"`
	Topic     string    `json:"topic"`
	Voice     string    `json:"voice" gorm:"not null"`
	Style     string    `json:"style" gorm:"not null"`
	Duration  int       `json:"duration" gorm:"not null"`
	Author    *string   `json:"author" gorm:"index"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName pins the gorm table name
func (Companion) TableName() string {
	return CompanionsTable
}

// CreateCompanionRequest is the caller-supplied part of a Companion.
// It has no Author field, so no binding can set one.
type CreateCompanionRequest struct {
	Name     string `json:"name" form:"name" binding:"required,max=100"`
	Subject  string `json:"subject" form:"subject" binding:"required,max=50"`
	Topic    string `json:"topic" form:"topic" binding:"max=500"`
	Voice    string `json:"voice" form:"voice" binding:"required,max=50"`
	Style    string `json:"style" form:"style" binding:"required,max=50"`
	Duration int    `json:"duration" form:"duration" binding:"required,min=1,max=240"`
}

// ToCompanion merges the request with the server-resolved author
func (r *CreateCompanionRequest) ToCompanion(author *string) *Companion {
	return &Companion{
		Name:     r.Name,
		Subject:  r.Subject,
		Topic:    r.Topic,
		Voice:    r.Voice,
		Style:    r.Style,
		Duration: r.Duration,
		Author:   author,
	}
}
