package handlers

import (
	"time"

	"photovault/internal/engine"
)

type Handlers struct {
	engine    *engine.Engine
	startTime time.Time
}

func New(eng *engine.Engine) *Handlers {
	return &Handlers{
		engine:    eng,
		startTime: time.Now(),
	}
}
