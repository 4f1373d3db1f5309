package authclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"

	"github.com/jrsteele09/go-auth-client/cookies"
	"github.com/jrsteele09/go-auth-client/discovery"
	"github.com/jrsteele09/go-auth-client/transactions"
)

// LoginHandler starts an authorization-code login. It mints fresh state,
// nonce and PKCE verifier values, saves them in a per-attempt transaction
// cookie and redirects the user agent to the provider's authorization
// endpoint (or hands the parameters over via PAR first, when enabled).
func (c *Client) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		_, metadata, err := c.discoverer.Discover(ctx)
		if err != nil {
			http.Error(w, "failed to discover the OpenID Connect configuration", http.StatusInternalServerError)
			return
		}

		txn := &transactions.State{
			State:        generateRandomString(32),
			Nonce:        generateRandomString(32),
			CodeVerifier: oauth2.GenerateVerifier(),
			ResponseType: "code",
			ReturnTo:     r.URL.Query().Get("returnTo"),
			MaxAge:       c.maxAge,
		}

		authorizationURL, err := c.authorizationURL(ctx, metadata, txn)
		if err != nil {
			log.Error().Err(err).Msg("failed to build the authorization redirect")
			http.Error(w, "failed to initiate the login", http.StatusInternalServerError)
			return
		}

		jar := cookies.NewJar(w, r)
		if err := c.transactions.Save(jar, txn); err != nil {
			log.Error().Err(err).Msg("failed to persist the login transaction")
			http.Error(w, "failed to initiate the login", http.StatusInternalServerError)
			return
		}

		http.Redirect(w, r, authorizationURL, http.StatusTemporaryRedirect)
	}
}

// authorizationURL builds the provider redirect target, pushing the
// parameters through the PAR endpoint first when configured.
func (c *Client) authorizationURL(ctx context.Context, metadata *discovery.Metadata, txn *transactions.State) (string, error) {
	if c.usePAR {
		return c.pushedAuthorizationURL(ctx, metadata, txn)
	}

	conf := c.oauthConfig(metadata)
	opts := []oauth2.AuthCodeOption{
		oauth2.S256ChallengeOption(txn.CodeVerifier),
		oauth2.SetAuthURLParam("nonce", txn.Nonce),
	}
	if txn.MaxAge > 0 {
		opts = append(opts, oauth2.SetAuthURLParam("max_age", strconv.FormatInt(txn.MaxAge, 10)))
	}
	for key, value := range c.authParams {
		opts = append(opts, oauth2.SetAuthURLParam(key, value))
	}
	return conf.AuthCodeURL(txn.State, opts...), nil
}

// pushedAuthorizationURL submits the full authorization request body to the
// PAR endpoint and returns a redirect carrying only the issued request_uri.
func (c *Client) pushedAuthorizationURL(ctx context.Context, metadata *discovery.Metadata, txn *transactions.State) (string, error) {
	if metadata.PushedAuthorizationRequestEndpoint == "" {
		return "", errors.New("the authorization server does not advertise a pushed_authorization_request_endpoint")
	}

	params := url.Values{}
	params.Set("client_id", c.clientID)
	params.Set("client_secret", c.clientSecret)
	params.Set("response_type", txn.ResponseType)
	params.Set("redirect_uri", c.redirectURI())
	params.Set("scope", c.scope)
	params.Set("state", txn.State)
	params.Set("nonce", txn.Nonce)
	params.Set("code_challenge", oauth2.S256ChallengeFromVerifier(txn.CodeVerifier))
	params.Set("code_challenge_method", "S256")
	if txn.MaxAge > 0 {
		params.Set("max_age", strconv.FormatInt(txn.MaxAge, 10))
	}
	for key, value := range c.authParams {
		params.Set(key, value)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, metadata.PushedAuthorizationRequestEndpoint, strings.NewReader(params.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("pushed authorization request rejected: %s", http.StatusText(resp.StatusCode))
	}

	var parResponse struct {
		RequestURI string `json:"request_uri"`
	}
	if err := json.Unmarshal(body, &parResponse); err != nil {
		return "", err
	}
	if parResponse.RequestURI == "" {
		return "", errors.New("pushed authorization response is missing request_uri")
	}

	redirect := url.Values{}
	redirect.Set("client_id", c.clientID)
	redirect.Set("request_uri", parResponse.RequestURI)
	return metadata.AuthorizationEndpoint + "?" + redirect.Encode(), nil
}
