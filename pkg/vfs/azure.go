package vfs

import (
	"context"
	"fmt"
	"io"
	"path"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
)

// AzureProvider serves az:// and azure:// URIs, mapping the first path
// segment to the blob container.
type AzureProvider struct {
	client *azblob.Client
}

// NewAzureProvider wraps an azblob client.
func NewAzureProvider(client *azblob.Client) *AzureProvider {
	return &AzureProvider{client: client}
}

// ReadFile implements FileProvider.
func (p *AzureProvider) ReadFile(ctx context.Context, uri string) ([]byte, error) {
	container, blob := SplitBucketKey(StripScheme(uri))
	resp, err := p.client.DownloadStream(ctx, container, blob, nil)
	if err != nil {
		return nil, fmt.Errorf("azure read %s: %w", uri, err)
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

// FileExists implements FileProvider.
func (p *AzureProvider) FileExists(ctx context.Context, uri string) (bool, error) {
	container, blob := SplitBucketKey(StripScheme(uri))
	_, err := p.client.ServiceClient().NewContainerClient(container).NewBlobClient(blob).GetProperties(ctx, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("azure stat %s: %w", uri, err)
	}
	return true, nil
}

// ListFiles implements FileProvider.
func (p *AzureProvider) ListFiles(ctx context.Context, dir, pattern string) ([]string, error) {
	container, prefix := SplitBucketKey(StripScheme(dir))
	pager := p.client.NewListBlobsFlatPager(container, &azblob.ListBlobsFlatOptions{Prefix: &prefix})

	var out []string
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("azure list %s: %w", dir, err)
		}
		for _, item := range page.Segment.BlobItems {
			name := *item.Name
			ok, err := path.Match(pattern, path.Base(name))
			if err != nil {
				return nil, fmt.Errorf("invalid glob %s: %w", pattern, err)
			}
			if ok {
				out = append(out, "az://"+container+"/"+name)
			}
		}
	}
	return out, nil
}
