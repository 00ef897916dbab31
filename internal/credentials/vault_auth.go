package credentials

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	vault "github.com/hashicorp/vault/api"
)

const (
	authToken      = "token"
	authAppRole    = "approle"
	authKubernetes = "kubernetes"
	authAWS        = "aws"

	defaultServiceAccountToken = "/var/run/secrets/kubernetes.io/serviceaccount/token"
)

type vaultAuth struct {
	method    string
	mount     string
	token     string
	roleID    string
	secretID  string
	role      string
	tokenPath string
	region    string
	headerID  string
}

func newVaultAuth(cfg ProviderConfig) (vaultAuth, error) {
	a := vaultAuth{
		token:     strings.TrimSpace(cfg.Token),
		roleID:    strings.TrimSpace(cfg.RoleID),
		secretID:  strings.TrimSpace(cfg.SecretID),
		tokenPath: strings.TrimSpace(cfg.KubernetesTokenPath),
		region:    strings.TrimSpace(cfg.AWSRegion),
		headerID:  strings.TrimSpace(cfg.AWSHeaderValue),
	}
	switch strings.ToLower(strings.TrimSpace(cfg.AuthMethod)) {
	case "":
		switch {
		case a.roleID != "" || a.secretID != "":
			a.method = authAppRole
		case strings.TrimSpace(cfg.KubernetesRole) != "":
			a.method = authKubernetes
		case strings.TrimSpace(cfg.AWSRole) != "":
			a.method = authAWS
		default:
			a.method = authToken
		}
	case "token":
		a.method = authToken
	case "approle", "app-role":
		a.method = authAppRole
	case "kubernetes", "k8s":
		a.method = authKubernetes
	case "aws", "aws-iam":
		a.method = authAWS
	default:
		return vaultAuth{}, fmt.Errorf("unsupported vault auth method %q", cfg.AuthMethod)
	}
	switch a.method {
	case authToken:
		if a.token == "" {
			a.token = strings.TrimSpace(os.Getenv("VAULT_TOKEN"))
		}
		if a.token == "" {
			return vaultAuth{}, fmt.Errorf("vault token is required (set token or VAULT_TOKEN)")
		}
	case authAppRole:
		if a.roleID == "" || a.secretID == "" {
			return vaultAuth{}, fmt.Errorf("vault approle auth requires roleId and secretId")
		}
	case authKubernetes:
		a.role = strings.TrimSpace(cfg.KubernetesRole)
		if a.role == "" {
			return vaultAuth{}, fmt.Errorf("vault kubernetes auth requires kubernetesRole")
		}
		if a.tokenPath == "" {
			a.tokenPath = defaultServiceAccountToken
		}
	case authAWS:
		a.role = strings.TrimSpace(cfg.AWSRole)
		if a.role == "" {
			return vaultAuth{}, fmt.Errorf("vault aws auth requires awsRole")
		}
	}
	a.mount = strings.Trim(strings.TrimSpace(cfg.AuthMount), "/")
	if a.mount == "" {
		a.mount = a.method
	}
	return a, nil
}

func (a vaultAuth) login(ctx context.Context, client *vault.Client) error {
	var payload map[string]interface{}
	switch a.method {
	case authAppRole:
		payload = map[string]interface{}{"role_id": a.roleID, "secret_id": a.secretID}
	case authKubernetes:
		raw, err := os.ReadFile(a.tokenPath)
		if err != nil {
			return fmt.Errorf("read service account token: %w", err)
		}
		payload = map[string]interface{}{"role": a.role, "jwt": strings.TrimSpace(string(raw))}
	case authAWS:
		var err error
		payload, err = awsLoginPayload(ctx, a)
		if err != nil {
			return err
		}
	default:
		return nil
	}
	secret, err := client.Logical().WriteWithContext(ctx, "auth/"+a.mount+"/login", payload)
	if err != nil {
		return fmt.Errorf("vault %s login: %w", a.method, err)
	}
	if secret == nil || secret.Auth == nil || secret.Auth.ClientToken == "" {
		return fmt.Errorf("vault %s login returned no client token", a.method)
	}
	client.SetToken(secret.Auth.ClientToken)
	return nil
}

// awsLoginPayload signs an STS GetCallerIdentity request for Vault's aws iam auth.
func awsLoginPayload(ctx context.Context, a vaultAuth) (map[string]interface{}, error) {
	region := a.region
	for _, env := range []string{"AWS_REGION", "AWS_DEFAULT_REGION"} {
		if region == "" {
			region = strings.TrimSpace(os.Getenv(env))
		}
	}
	if region == "" {
		return nil, fmt.Errorf("aws region is required for vault auth (set awsRegion or AWS_REGION)")
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	creds, err := awsCfg.Credentials.Retrieve(ctx)
	if err != nil {
		return nil, fmt.Errorf("retrieve aws credentials: %w", err)
	}
	const body = "Action=GetCallerIdentity&Version=2011-06-15"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "https://sts.amazonaws.com/", strings.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=utf-8")
	if a.headerID != "" {
		req.Header.Set("X-Vault-AWS-IAM-Server-ID", a.headerID)
	}
	sum := sha256.Sum256([]byte(body))
	if err := v4.NewSigner().SignHTTP(ctx, creds, req, hex.EncodeToString(sum[:]), "sts", region, time.Now()); err != nil {
		return nil, fmt.Errorf("sign sts request: %w", err)
	}
	headers := map[string][]string{}
	for k, v := range req.Header {
		headers[k] = v
	}
	headers["Host"] = []string{req.URL.Host}
	headerJSON, err := json.Marshal(headers)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"role":                    a.role,
		"iam_http_request_method": req.Method,
		"iam_request_url":         base64.StdEncoding.EncodeToString([]byte(req.URL.String())),
		"iam_request_body":        base64.StdEncoding.EncodeToString([]byte(body)),
		"iam_request_headers":     base64.StdEncoding.EncodeToString(headerJSON),
	}, nil
}
