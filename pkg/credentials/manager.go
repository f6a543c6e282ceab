// Package credentials manages per-cloud credential state and installs it into
// the query engine's secret catalog.
package credentials

import (
	"context"
	"os"

	"github.com/datazoode/flapi/pkg/engine"
	"github.com/datazoode/flapi/pkg/logger"
)

// S3Credentials holds AWS credentials for s3:// access.
type S3Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	SessionToken    string
	EndpointURL     string
}

// Configured reports whether there is anything to install.
func (c S3Credentials) Configured() bool {
	return c.AccessKeyID != "" && c.SecretAccessKey != ""
}

// GCSCredentials holds Google Cloud credentials for gs:// access.
type GCSCredentials struct {
	CredentialsFile string
	Project         string
}

// Configured reports whether there is anything to install.
func (c GCSCredentials) Configured() bool {
	return c.CredentialsFile != ""
}

// AzureCredentials holds Azure storage credentials for az:// access.
type AzureCredentials struct {
	ConnectionString string
	AccountName      string
	AccountKey       string
	TenantID         string
	ClientID         string
}

// Configured reports whether there is anything to install.
func (c AzureCredentials) Configured() bool {
	return c.ConnectionString != "" || (c.AccountName != "" && c.AccountKey != "")
}

// Manager holds the resolved credential state. It is built once at boot and
// read-only afterwards.
type Manager struct {
	S3    S3Credentials
	GCS   GCSCredentials
	Azure AzureCredentials
}

// NewFromEnv resolves credentials from the environment.
func NewFromEnv() *Manager {
	region := os.Getenv("AWS_REGION")
	if region == "" {
		region = os.Getenv("AWS_DEFAULT_REGION")
	}
	project := os.Getenv("GOOGLE_CLOUD_PROJECT")
	if project == "" {
		project = os.Getenv("GCLOUD_PROJECT")
	}
	if project == "" {
		project = os.Getenv("GCP_PROJECT")
	}

	return &Manager{
		S3: S3Credentials{
			AccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
			Region:          region,
			SessionToken:    os.Getenv("AWS_SESSION_TOKEN"),
			EndpointURL:     os.Getenv("AWS_ENDPOINT_URL"),
		},
		GCS: GCSCredentials{
			CredentialsFile: os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"),
			Project:         project,
		},
		Azure: AzureCredentials{
			ConnectionString: os.Getenv("AZURE_STORAGE_CONNECTION_STRING"),
			AccountName:      os.Getenv("AZURE_STORAGE_ACCOUNT"),
			AccountKey:       os.Getenv("AZURE_STORAGE_KEY"),
			TenantID:         os.Getenv("AZURE_TENANT_ID"),
			ClientID:         os.Getenv("AZURE_CLIENT_ID"),
		},
	}
}

// InstallAll creates engine secrets for every configured backend so SQL
// templates can read remote data directly.
func (m *Manager) InstallAll(ctx context.Context, catalog engine.SecretCatalog) error {
	if m.S3.Configured() {
		options := map[string]string{
			"KEY_ID": m.S3.AccessKeyID,
			"SECRET": m.S3.SecretAccessKey,
		}
		if m.S3.Region != "" {
			options["REGION"] = m.S3.Region
		}
		if m.S3.SessionToken != "" {
			options["SESSION_TOKEN"] = m.S3.SessionToken
		}
		if m.S3.EndpointURL != "" {
			options["ENDPOINT"] = m.S3.EndpointURL
		}
		if err := catalog.CreateSecret(ctx, engine.Secret{
			Name: "flapi_s3", Type: "s3", Options: options,
		}); err != nil {
			return err
		}
		logger.Infof("installed S3 credentials into engine secret catalog")
	}

	if m.GCS.Configured() {
		if err := catalog.CreateSecret(ctx, engine.Secret{
			Name: "flapi_gcs", Type: "gcs",
			Options: map[string]string{"KEY_FILE": m.GCS.CredentialsFile},
		}); err != nil {
			return err
		}
		logger.Infof("installed GCS credentials into engine secret catalog")
	}

	if m.Azure.Configured() {
		options := map[string]string{}
		if m.Azure.ConnectionString != "" {
			options["CONNECTION_STRING"] = m.Azure.ConnectionString
		} else {
			options["ACCOUNT_NAME"] = m.Azure.AccountName
			options["ACCOUNT_KEY"] = m.Azure.AccountKey
		}
		if err := catalog.CreateSecret(ctx, engine.Secret{
			Name: "flapi_azure", Type: "azure", Options: options,
		}); err != nil {
			return err
		}
		logger.Infof("installed Azure credentials into engine secret catalog")
	}

	return nil
}
