package app

import (
	"context"
	"fmt"

	"cloud.google.com/go/storage"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awscreds "github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"google.golang.org/api/option"

	"github.com/datazoode/flapi/pkg/credentials"
)

// buildS3Client resolves the AWS configuration, preferring the credential
// manager's explicit keys over the SDK default chain.
func buildS3Client(creds *credentials.Manager) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{}
	if creds.S3.Region != "" {
		opts = append(opts, awsconfig.WithRegion(creds.S3.Region))
	}
	if creds.S3.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			awscreds.NewStaticCredentialsProvider(
				creds.S3.AccessKeyID, creds.S3.SecretAccessKey, creds.S3.SessionToken)))
	}
	cfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve AWS config: %w", err)
	}
	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if creds.S3.EndpointURL != "" {
			o.BaseEndpoint = &creds.S3.EndpointURL
			o.UsePathStyle = true
		}
	}), nil
}

func buildGCSClient(creds *credentials.Manager) (*storage.Client, error) {
	var opts []option.ClientOption
	if creds.GCS.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(creds.GCS.CredentialsFile))
	}
	client, err := storage.NewClient(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}
	return client, nil
}

func buildAzureClient(creds *credentials.Manager) (*azblob.Client, error) {
	if creds.Azure.ConnectionString != "" {
		client, err := azblob.NewClientFromConnectionString(creds.Azure.ConnectionString, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create Azure client: %w", err)
		}
		return client, nil
	}

	serviceURL := fmt.Sprintf("https://%s.blob.core.windows.net/", creds.Azure.AccountName)
	if creds.Azure.AccountKey != "" {
		cred, err := azblob.NewSharedKeyCredential(creds.Azure.AccountName, creds.Azure.AccountKey)
		if err != nil {
			return nil, fmt.Errorf("invalid Azure shared key: %w", err)
		}
		client, err := azblob.NewClientWithSharedKeyCredential(serviceURL, cred, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create Azure client: %w", err)
		}
		return client, nil
	}

	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve Azure credentials: %w", err)
	}
	client, err := azblob.NewClient(serviceURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure client: %w", err)
	}
	return client, nil
}
