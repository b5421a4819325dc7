package auth

import (
	"context"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"millstock/internal/core/apperror"
	appctx "millstock/internal/core/context"
	"millstock/internal/core/id"
)

// --- mocks ---

type mockTxManager struct{}

func (mockTxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type mockOperatorRepo struct {
	byID map[id.ID]*Operator
}

func newMockOperatorRepo() *mockOperatorRepo {
	return &mockOperatorRepo{byID: make(map[id.ID]*Operator)}
}

func cloneOp(o *Operator) *Operator {
	c := *o
	return &c
}

func (r *mockOperatorRepo) Create(ctx context.Context, op *Operator) error {
	r.byID[op.ID] = cloneOp(op)
	return nil
}

func (r *mockOperatorRepo) GetByID(ctx context.Context, operatorID id.ID) (*Operator, error) {
	op, ok := r.byID[operatorID]
	if !ok {
		return nil, apperror.NewNotFound("operator", operatorID.String())
	}
	return cloneOp(op), nil
}

func (r *mockOperatorRepo) GetByEmail(ctx context.Context, email string) (*Operator, error) {
	for _, op := range r.byID {
		if op.Email == email {
			return cloneOp(op), nil
		}
	}
	return nil, apperror.NewNotFound("operator", email)
}

func (r *mockOperatorRepo) Update(ctx context.Context, op *Operator) error {
	if _, ok := r.byID[op.ID]; !ok {
		return apperror.NewNotFound("operator", op.ID.String())
	}
	r.byID[op.ID] = cloneOp(op)
	return nil
}

func (r *mockOperatorRepo) List(ctx context.Context, filter OperatorFilter) ([]Operator, int, error) {
	var out []Operator
	for _, op := range r.byID {
		out = append(out, *cloneOp(op))
	}
	return out, len(out), nil
}

func (r *mockOperatorRepo) Exists(ctx context.Context, email string) (bool, error) {
	_, err := r.GetByEmail(ctx, email)
	return err == nil, nil
}

var _ OperatorRepository = (*mockOperatorRepo)(nil)

type mockTokenRepo struct {
	byHash map[string]*RefreshToken
}

func newMockTokenRepo() *mockTokenRepo {
	return &mockTokenRepo{byHash: make(map[string]*RefreshToken)}
}

func (r *mockTokenRepo) SaveRefreshToken(ctx context.Context, token *RefreshToken) error {
	c := *token
	r.byHash[token.TokenHash] = &c
	return nil
}

func (r *mockTokenRepo) GetRefreshToken(ctx context.Context, tokenHash string) (*RefreshToken, error) {
	token, ok := r.byHash[tokenHash]
	if !ok {
		return nil, apperror.NewNotFound("token", "")
	}
	c := *token
	return &c, nil
}

func (r *mockTokenRepo) RevokeRefreshToken(ctx context.Context, tokenID id.ID, reason string) error {
	for _, token := range r.byHash {
		if token.ID == tokenID {
			now := time.Now()
			token.RevokedAt = &now
			token.RevokedReason = reason
		}
	}
	return nil
}

func (r *mockTokenRepo) RevokeAllOperatorTokens(ctx context.Context, operatorID id.ID, reason string) error {
	for _, token := range r.byHash {
		if token.OperatorID == operatorID && token.RevokedAt == nil {
			now := time.Now()
			token.RevokedAt = &now
			token.RevokedReason = reason
		}
	}
	return nil
}

func (r *mockTokenRepo) CleanupExpiredTokens(ctx context.Context) (int, error) {
	return 0, nil
}

var _ TokenRepository = (*mockTokenRepo)(nil)

// --- fixture ---

type fixture struct {
	svc *Service
	ops *mockOperatorRepo
	jwt *JWTService
}

func newFixture(config ServiceConfig) *fixture {
	ops := newMockOperatorRepo()
	jwtService := NewJWTService(DefaultJWTConfig("test-secret"))
	svc := NewService(ops, newMockTokenRepo(), mockTxManager{}, jwtService, config)
	return &fixture{svc: svc, ops: ops, jwt: jwtService}
}

func (f *fixture) seedOperator(t *testing.T, email, password, role string) *Operator {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	op := NewOperator(email, string(hash), role)
	if err := f.ops.Create(context.Background(), op); err != nil {
		t.Fatalf("seed operator: %v", err)
	}
	return op
}

func adminCtx() context.Context {
	return appctx.WithUser(context.Background(), &appctx.UserContext{
		UserID: "owner", Role: appctx.RoleAdmin,
	})
}

func operatorCtx() context.Context {
	return appctx.WithUser(context.Background(), &appctx.UserContext{
		UserID: "ravi", Role: appctx.RoleOperator,
	})
}

func wantCode(t *testing.T, err error, code string) {
	t.Helper()
	appErr, ok := apperror.AsAppError(err)
	if !ok || appErr.Code != code {
		t.Fatalf("err = %v, want code %s", err, code)
	}
}

// --- tests ---

func TestLogin_IssuesValidatableTokens(t *testing.T) {
	f := newFixture(DefaultServiceConfig())
	op := f.seedOperator(t, "mill@example.com", "grindstone9", appctx.RoleAdmin)

	pair, loggedIn, err := f.svc.Login(context.Background(), Credentials{
		Email: "Mill@Example.com ", Password: "grindstone9",
	})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	if pair.AccessToken == "" || pair.RefreshToken == "" || pair.TokenType != "Bearer" {
		t.Fatalf("pair = %+v", pair)
	}

	user, err := f.jwt.ValidateToken(pair.AccessToken)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if user.UserID != op.ID.String() || user.Role != appctx.RoleAdmin || user.SessionID == "" {
		t.Fatalf("claims = %+v", user)
	}

	if loggedIn.LastLoginAt == nil {
		t.Fatal("login timestamp not recorded")
	}
}

func TestLogin_WrongPasswordLocksAtCap(t *testing.T) {
	config := DefaultServiceConfig()
	config.MaxLoginAttempts = 3
	f := newFixture(config)
	f.seedOperator(t, "mill@example.com", "grindstone9", appctx.RoleOperator)

	creds := Credentials{Email: "mill@example.com", Password: "wrong"}
	for i := 0; i < 3; i++ {
		_, _, err := f.svc.Login(context.Background(), creds)
		wantCode(t, err, apperror.CodeUnauthorized)
	}

	// Correct password is now rejected by the lock, not the hash check.
	_, _, err := f.svc.Login(context.Background(), Credentials{
		Email: "mill@example.com", Password: "grindstone9",
	})
	wantCode(t, err, apperror.CodeForbidden)
}

func TestLogin_UnknownEmailLooksLikeWrongPassword(t *testing.T) {
	f := newFixture(DefaultServiceConfig())
	f.seedOperator(t, "mill@example.com", "grindstone9", appctx.RoleOperator)

	_, _, unknownErr := f.svc.Login(context.Background(), Credentials{
		Email: "nobody@example.com", Password: "grindstone9",
	})
	_, _, wrongErr := f.svc.Login(context.Background(), Credentials{
		Email: "mill@example.com", Password: "wrong",
	})

	if unknownErr.Error() != wrongErr.Error() {
		t.Fatalf("responses differ: %q vs %q", unknownErr, wrongErr)
	}
}

func TestRefreshToken_RotatesSession(t *testing.T) {
	f := newFixture(DefaultServiceConfig())
	f.seedOperator(t, "mill@example.com", "grindstone9", appctx.RoleOperator)

	pair, _, err := f.svc.Login(context.Background(), Credentials{
		Email: "mill@example.com", Password: "grindstone9",
	})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	next, err := f.svc.RefreshToken(context.Background(), pair.RefreshToken)
	if err != nil {
		t.Fatalf("RefreshToken: %v", err)
	}
	if next.RefreshToken == pair.RefreshToken {
		t.Fatal("refresh token not rotated")
	}

	// The exchanged token is revoked; replaying it fails.
	_, err = f.svc.RefreshToken(context.Background(), pair.RefreshToken)
	wantCode(t, err, apperror.CodeUnauthorized)
}

func TestCreateOperator_AdminOnly(t *testing.T) {
	f := newFixture(DefaultServiceConfig())

	input := CreateOperatorInput{Email: "New@Example.com", Password: "longenough"}

	_, err := f.svc.CreateOperator(operatorCtx(), input)
	wantCode(t, err, apperror.CodeForbidden)

	op, err := f.svc.CreateOperator(adminCtx(), input)
	if err != nil {
		t.Fatalf("CreateOperator: %v", err)
	}
	if op.Email != "new@example.com" || op.Role != appctx.RoleOperator {
		t.Fatalf("operator = %+v, want lowercased email and default role", op)
	}

	_, err = f.svc.CreateOperator(adminCtx(), input)
	wantCode(t, err, apperror.CodeConflict)
}

func TestDeactivate_KillsSessions(t *testing.T) {
	f := newFixture(DefaultServiceConfig())
	op := f.seedOperator(t, "mill@example.com", "grindstone9", appctx.RoleOperator)

	pair, _, err := f.svc.Login(context.Background(), Credentials{
		Email: "mill@example.com", Password: "grindstone9",
	})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	if err := f.svc.Deactivate(adminCtx(), op.ID); err != nil {
		t.Fatalf("Deactivate: %v", err)
	}

	_, err = f.svc.RefreshToken(context.Background(), pair.RefreshToken)
	if err == nil {
		t.Fatal("refresh succeeded on a deactivated account")
	}

	_, _, err = f.svc.Login(context.Background(), Credentials{
		Email: "mill@example.com", Password: "grindstone9",
	})
	wantCode(t, err, apperror.CodeForbidden)
}
