package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/roni12291832/nexus-car/internal/config"
	"github.com/roni12291832/nexus-car/internal/storage"
	"github.com/roni12291832/nexus-car/internal/storage/model"
)

var (
	ErrInvalidCredentials = errors.New("auth: credenciais inválidas")
	ErrEmailTaken         = errors.New("auth: e-mail já cadastrado")
	ErrInvalidToken       = errors.New("auth: token inválido")
	ErrAccountInactive    = errors.New("auth: conta inativa")
)

type Service struct {
	tenants storage.TenantRepository
	cfg     config.JWTConfig
	log     *zap.Logger
}

func NewService(tenants storage.TenantRepository, cfg config.JWTConfig, log *zap.Logger) *Service {
	return &Service{tenants: tenants, cfg: cfg, log: log}
}

type Claims struct {
	jwt.RegisteredClaims
}

// Register cria a conta da concessionária com a senha em bcrypt.
func (s *Service) Register(ctx context.Context, email, password string) (model.Tenant, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || len(password) < 6 {
		return model.Tenant{}, ErrInvalidCredentials
	}

	if _, err := s.tenants.GetByEmail(ctx, email); err == nil {
		return model.Tenant{}, ErrEmailTaken
	} else if !errors.Is(err, storage.ErrNotFound) {
		return model.Tenant{}, fmt.Errorf("auth: consultar e-mail: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return model.Tenant{}, fmt.Errorf("auth: hash de senha: %w", err)
	}

	tenant, err := s.tenants.Create(ctx, model.Tenant{
		Email:        email,
		PasswordHash: string(hash),
		Ativo:        true,
	})
	if err != nil {
		return model.Tenant{}, fmt.Errorf("auth: criar conta: %w", err)
	}

	s.log.Info("auth: conta criada", zap.String("tenant_id", tenant.ID))
	return tenant, nil
}

// Login valida a senha e emite o JWT de sessão.
func (s *Service) Login(ctx context.Context, email, password string) (string, model.Tenant, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	tenant, err := s.tenants.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", model.Tenant{}, ErrInvalidCredentials
		}
		return "", model.Tenant{}, fmt.Errorf("auth: consultar conta: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(tenant.PasswordHash), []byte(password)); err != nil {
		return "", model.Tenant{}, ErrInvalidCredentials
	}
	if !tenant.Ativo {
		return "", model.Tenant{}, ErrAccountInactive
	}

	token, err := s.issueToken(tenant.ID)
	if err != nil {
		return "", model.Tenant{}, err
	}
	return token, tenant, nil
}

func (s *Service) issueToken(tenantID string) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   tenantID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(s.cfg.ExpHours) * time.Hour)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("auth: assinar token: %w", err)
	}
	return signed, nil
}

// ValidateToken verifica assinatura e expiração e devolve o tenant dono.
func (s *Service) ValidateToken(tokenString string) (string, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("auth: método de assinatura inesperado: %v", t.Header["alg"])
		}
		return []byte(s.cfg.Secret), nil
	})
	if err != nil || !token.Valid || claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}
