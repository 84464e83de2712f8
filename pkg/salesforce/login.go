package salesforce

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/bturcanu/sfclause/pkg/credentials"
	"github.com/bturcanu/sfclause/pkg/types"
	"golang.org/x/oauth2"
)

// Connect establishes a session using the strategy chosen for r. Login
// failures are reported as "failed to connect: <cause>".
func Connect(ctx context.Context, r credentials.Resolved, cfg Config) (*Client, error) {
	cfg = cfg.withDefaults()

	switch r.Strategy {
	case credentials.StrategySession:
		return NewClient(r.Instance, r.SessionID, cfg)
	case credentials.StrategyPassword:
		res, err := soapLogin(ctx, cfg, r)
		if err != nil {
			return nil, types.WrapAuth(err, "failed to connect")
		}
		c, err := NewClient(res.instanceURL, res.sessionID, cfg)
		if err != nil {
			return nil, types.WrapAuth(err, "failed to connect")
		}
		c.userID = res.userID
		return c, nil
	case credentials.StrategyOAuth:
		res, err := oauthLogin(ctx, cfg, r)
		if err != nil {
			return nil, types.WrapAuth(err, "failed to connect")
		}
		c, err := NewClient(res.instanceURL, res.sessionID, cfg)
		if err != nil {
			return nil, types.WrapAuth(err, "failed to connect")
		}
		c.userID = res.userID
		return c, nil
	default:
		return nil, types.ErrConfig("unknown authentication strategy %d", r.Strategy)
	}
}

// LoginURL returns the login host for domain: "login" for production, "test"
// for sandboxes, or a My Domain prefix.
func LoginURL(cfg Config, domain string) string {
	if cfg.LoginURL != "" {
		return strings.TrimRight(cfg.LoginURL, "/")
	}
	if domain == "" {
		domain = credentials.DefaultDomain
	}
	if strings.HasSuffix(domain, ".salesforce.com") {
		return "https://" + domain
	}
	return "https://" + domain + ".salesforce.com"
}

type loginResult struct {
	instanceURL string
	sessionID   string
	userID      string
}

// ──────────────────────────────────────────────────────────────────────────────
// Username + password + security token (SOAP partner login)
// ──────────────────────────────────────────────────────────────────────────────

const soapLoginTemplate = `<?xml version="1.0" encoding="utf-8" ?>
<env:Envelope
        xmlns:xsd="http://www.w3.org/2001/XMLSchema"
        xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance"
        xmlns:env="http://schemas.xmlsoap.org/soap/envelope/"
        xmlns:urn="urn:partner.soap.sforce.com">
    <env:Header>
        <urn:CallOptions>
            <urn:client>sfclause</urn:client>
            <urn:defaultNamespace>sf</urn:defaultNamespace>
        </urn:CallOptions>
    </env:Header>
    <env:Body>
        <n1:login xmlns:n1="urn:partner.soap.sforce.com">
            <n1:username>%s</n1:username>
            <n1:password>%s</n1:password>
        </n1:login>
    </env:Body>
</env:Envelope>`

type soapEnvelope struct {
	Body struct {
		LoginResponse struct {
			Result struct {
				ServerURL string `xml:"serverUrl"`
				SessionID string `xml:"sessionId"`
				UserID    string `xml:"userId"`
			} `xml:"result"`
		} `xml:"loginResponse"`
		Fault *struct {
			Code   string `xml:"faultcode"`
			String string `xml:"faultstring"`
		} `xml:"Fault"`
	} `xml:"Body"`
}

func soapLogin(ctx context.Context, cfg Config, r credentials.Resolved) (loginResult, error) {
	body := fmt.Sprintf(soapLoginTemplate, xmlEscape(r.Username), xmlEscape(r.Password+r.SecurityToken))
	endpoint := LoginURL(cfg, r.Domain) + "/services/Soap/u/" + cfg.APIVersion

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(body))
	if err != nil {
		return loginResult{}, fmt.Errorf("soap login request: %w", err)
	}
	req.Header.Set("Content-Type", "text/xml; charset=UTF-8")
	req.Header.Set("SOAPAction", "login")

	resp, err := cfg.HTTPClient.Do(req)
	if err != nil {
		return loginResult{}, fmt.Errorf("soap login: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return loginResult{}, fmt.Errorf("soap login read response: %w", err)
	}

	var env soapEnvelope
	if err := xml.Unmarshal(raw, &env); err != nil {
		return loginResult{}, fmt.Errorf("soap login returned status %d with undecodable body: %w", resp.StatusCode, err)
	}
	if f := env.Body.Fault; f != nil {
		return loginResult{}, fmt.Errorf("%s: %s", strings.TrimPrefix(f.Code, "sf:"), f.String)
	}
	res := env.Body.LoginResponse.Result
	if resp.StatusCode != http.StatusOK || res.SessionID == "" || res.ServerURL == "" {
		return loginResult{}, fmt.Errorf("soap login returned status %d without a session", resp.StatusCode)
	}

	instanceURL, err := normalizeInstance(res.ServerURL)
	if err != nil {
		return loginResult{}, err
	}
	return loginResult{instanceURL: instanceURL, sessionID: res.SessionID, userID: res.UserID}, nil
}

func xmlEscape(s string) string {
	var buf bytes.Buffer
	_ = xml.EscapeText(&buf, []byte(s))
	return buf.String()
}

// ──────────────────────────────────────────────────────────────────────────────
// Username + password + connected app (OAuth 2.0 password grant)
// ──────────────────────────────────────────────────────────────────────────────

func oauthLogin(ctx context.Context, cfg Config, r credentials.Resolved) (loginResult, error) {
	conf := &oauth2.Config{
		ClientID:     r.ConsumerKey,
		ClientSecret: r.ConsumerSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL:  LoginURL(cfg, r.Domain) + "/services/oauth2/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, cfg.HTTPClient)

	tok, err := conf.PasswordCredentialsToken(ctx, r.Username, r.Password)
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.ErrorCode != "" {
			return loginResult{}, fmt.Errorf("%s: %s", re.ErrorCode, re.ErrorDescription)
		}
		return loginResult{}, fmt.Errorf("oauth login: %w", err)
	}

	instance, _ := tok.Extra("instance_url").(string)
	if instance == "" {
		return loginResult{}, errors.New("oauth login: token response has no instance_url")
	}
	instanceURL, err := normalizeInstance(instance)
	if err != nil {
		return loginResult{}, err
	}

	// id is https://login.salesforce.com/id/<orgId>/<userId>
	var userID string
	if id, ok := tok.Extra("id").(string); ok && id != "" {
		userID = path.Base(id)
	}
	return loginResult{instanceURL: instanceURL, sessionID: tok.AccessToken, userID: userID}, nil
}
