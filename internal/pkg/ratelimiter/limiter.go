// Package ratelimiter define o contrato de janela fixa usado pelo
// middleware da API; as implementações vivem em memory/ e redis/.
package ratelimiter

import (
	"context"
	"time"
)

// Result descreve a decisão do limiter para uma chave.
type Result struct {
	Allowed    bool
	Remaining  int
	Reset      time.Time
	RetryAfter time.Duration
}

// Limiter conta requisições por chave dentro da janela. A chave aqui é
// o hash do token do tenant, nunca o token em si.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*Result, error)
}
