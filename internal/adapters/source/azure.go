package source

import (
	"context"
	"fmt"
	"io"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"

	"github.com/jobrunner/tilevault/internal/domain"
)

// AzureSource implements TileSource for tile mirrors in Azure Blob Storage.
// Blobs are named <prefix>/<z>/<x>/<y>.png.
type AzureSource struct {
	client    *azblob.Client
	container string
	prefix    string
}

// AzureConfig holds Azure Blob Storage tile source configuration.
type AzureConfig struct {
	Container        string
	AccountName      string
	AccountKey       string
	ConnectionString string
	Prefix           string
}

// NewAzureSource creates a new Azure Blob Storage tile source adapter.
func NewAzureSource(cfg AzureConfig) (*AzureSource, error) {
	var client *azblob.Client
	var err error

	if cfg.ConnectionString != "" {
		client, err = azblob.NewClientFromConnectionString(cfg.ConnectionString, nil)
	} else {
		url := "https://" + cfg.AccountName + ".blob.core.windows.net/"
		cred, err := azblob.NewSharedKeyCredential(cfg.AccountName, cfg.AccountKey)
		if err != nil {
			return nil, err
		}
		client, err = azblob.NewClientWithSharedKeyCredential(url, cred, nil)
		if err != nil {
			return nil, err
		}
	}

	if err != nil {
		return nil, err
	}

	return &AzureSource{
		client:    client,
		container: cfg.Container,
		prefix:    cfg.Prefix,
	}, nil
}

// URL returns a descriptive URL for the tile blob.
func (s *AzureSource) URL(tile domain.TileCoordinate) string {
	return fmt.Sprintf("azblob://%s/%s", s.container, s.blobName(tile))
}

// Fetch downloads a tile blob from Azure.
func (s *AzureSource) Fetch(ctx context.Context, tile domain.TileCoordinate) ([]byte, error) {
	resp, err := s.client.DownloadStream(ctx, s.container, s.blobName(tile), nil)
	if err != nil {
		return nil, &domain.FetchError{Coordinate: tile, URL: s.URL(tile), Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.FetchError{Coordinate: tile, URL: s.URL(tile), Err: err}
	}

	return data, nil
}

// blobName returns the full blob name including prefix.
func (s *AzureSource) blobName(tile domain.TileCoordinate) string {
	name := tile.Key() + ".png"
	if s.prefix == "" {
		return name
	}
	return s.prefix + "/" + name
}
