// Package models contains GORM-specific persistence models that map to database tables.
// These models are separate from domain types to keep the domain layer free
// from ORM concerns; mappers convert in both directions.
package models
