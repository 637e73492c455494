package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/roni12291832/nexus-car/internal/config"
)

const Version = "1.0.0"

// App embrulha o servidor HTTP. A composição das dependências fica no
// main; aqui mora só o ciclo de vida do listener.
type App struct {
	cfg config.Config
	log *zap.Logger
	srv *http.Server
}

func New(cfg config.Config, log *zap.Logger, router *gin.Engine) *App {
	return &App{
		cfg: cfg,
		log: log,
		srv: &http.Server{
			Addr:              ":" + cfg.App.Port,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Run bloqueia servindo requisições até o listener encerrar.
func (a *App) Run(ctx context.Context) error {
	a.log.Info("servidor HTTP escutando", zap.String("addr", a.srv.Addr))
	if err := a.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (a *App) Shutdown(ctx context.Context) error {
	return a.srv.Shutdown(ctx)
}
