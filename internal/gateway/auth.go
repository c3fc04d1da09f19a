package gateway

import (
	"context"
	"fmt"

	"github.com/hitoshi/decodetube/internal/model"
)

const signInMutation = `mutation SignIn($email: String!, $password: String!) {
  signIn(credentials: {email: $email, password: $password}) {
    session {
      accessToken
      accessTokenExpiresIn
      refreshToken
      refreshTokenId
      user {
        avatarUrl
        displayName
        email
      }
    }
  }
}`

const signUpMutation = `mutation SignUp($email: String!, $password: String!) {
  signUp(newuser: {email: $email, password: $password}) {
    success
  }
}`

// signInData はsignInミューテーションのdata部。
type signInData struct {
	SignIn *struct {
		Session *struct {
			AccessToken          string `json:"accessToken"`
			AccessTokenExpiresIn int    `json:"accessTokenExpiresIn"`
			RefreshToken         string `json:"refreshToken"`
			RefreshTokenID       string `json:"refreshTokenId"`
			User                 struct {
				AvatarURL   string `json:"avatarUrl"`
				DisplayName string `json:"displayName"`
				Email       string `json:"email"`
			} `json:"user"`
		} `json:"session"`
	} `json:"signIn"`
}

// signUpData はsignUpミューテーションのdata部。
type signUpData struct {
	SignUp *struct {
		Success bool `json:"success"`
	} `json:"signUp"`
}

// AuthGateway は認証ゲートウェイ（Hasura GraphQL）のクライアント。
type AuthGateway struct {
	client *graphQLClient
}

// NewAuthGateway はAuthGatewayを生成する。
func NewAuthGateway(config ClientConfig) *AuthGateway {
	return &AuthGateway{client: newGraphQLClient(config)}
}

// SignIn はメールアドレスとパスワードでサインインし、セッションを返す。
// リフレッシュトークンが返らない場合はゲートウェイの拒否として扱う。
func (g *AuthGateway) SignIn(ctx context.Context, email, password string) (*model.AuthSession, error) {
	var data signInData
	vars := map[string]any{"email": email, "password": password}
	if err := g.client.do(ctx, signInMutation, vars, "", &data); err != nil {
		return nil, fmt.Errorf("sign in: %w", err)
	}

	if data.SignIn == nil || data.SignIn.Session == nil || data.SignIn.Session.RefreshToken == "" {
		return nil, fmt.Errorf("sign in: %w", &RejectedError{Message: "no session returned"})
	}

	s := data.SignIn.Session
	return &model.AuthSession{
		AccessToken:          s.AccessToken,
		AccessTokenExpiresIn: s.AccessTokenExpiresIn,
		RefreshToken:         s.RefreshToken,
		RefreshTokenID:       s.RefreshTokenID,
		User: model.User{
			AvatarURL:   s.User.AvatarURL,
			DisplayName: s.User.DisplayName,
			Email:       s.User.Email,
		},
	}, nil
}

// SignUp は未確認アカウントを作成する。トークンは発行されない。
func (g *AuthGateway) SignUp(ctx context.Context, email, password string) error {
	var data signUpData
	vars := map[string]any{"email": email, "password": password}
	if err := g.client.do(ctx, signUpMutation, vars, "", &data); err != nil {
		return fmt.Errorf("sign up: %w", err)
	}

	if data.SignUp == nil || !data.SignUp.Success {
		return fmt.Errorf("sign up: %w", &RejectedError{Message: "account was not created"})
	}

	return nil
}
