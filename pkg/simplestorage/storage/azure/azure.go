package azure

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blockblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/container"
	"github.com/tendant/simple-storage/pkg/simplestorage"
)

const (
	backendName = "azure"

	connectionPattern = "DefaultEndpointsProtocol=%s;AccountName=%s;AccountKey=%s;"
)

// Config options for the Azure Blob backend
type Config struct {
	Protocol     string // http or https; defaults to https
	AccountName  string
	AccountKey   string
	Container    string // Container name, lower-cased before use
	Endpoint     string // Optional blob endpoint, e.g. Azurite at http://127.0.0.1:10000/devstoreaccount1
	PublicAccess bool   // Create the container with container-level public read access

	Logger *slog.Logger // Optional; defaults to slog.Default()
}

// Backend is an Azure Blob Storage implementation of the simplestorage.Adapter
// interface. Blobs are block blobs inside a single container.
type Backend struct {
	container *container.Client
	name      string
	config    Config
	logger    *slog.Logger
}

func validate(config Config) (Config, error) {
	config.Container = strings.ToLower(strings.TrimSpace(config.Container))
	if config.Container == "" {
		return config, simplestorage.Misconfigured(backendName, "container", "container name is required")
	}
	if config.AccountName == "" {
		return config, simplestorage.Misconfigured(backendName, "account_name", "account name is required")
	}
	if config.AccountKey == "" {
		return config, simplestorage.Misconfigured(backendName, "account_key", "account key is required")
	}
	config.Protocol = strings.ToLower(strings.TrimSpace(config.Protocol))
	switch config.Protocol {
	case "":
		config.Protocol = "https"
	case "http", "https":
	default:
		return config, simplestorage.Misconfigured(backendName, "protocol", fmt.Sprintf("unsupported protocol %q", config.Protocol))
	}
	config.Endpoint = strings.TrimSuffix(config.Endpoint, "/")
	return config, nil
}

// ConnectionString renders the account connection string for config
func ConnectionString(config Config) string {
	s := fmt.Sprintf(connectionPattern, config.Protocol, config.AccountName, config.AccountKey)
	if config.Endpoint != "" {
		s += "BlobEndpoint=" + config.Endpoint + ";"
	}
	return s
}

// New validates config, connects to the storage account and creates the
// container if it does not exist.
func New(ctx context.Context, config Config) (*Backend, error) {
	config, err := validate(config)
	if err != nil {
		return nil, err
	}

	client, err := azblob.NewClientFromConnectionString(ConnectionString(config), nil)
	if err != nil {
		return nil, &simplestorage.ConfigError{Backend: backendName, Field: "connection", Msg: "invalid account settings", Err: err}
	}

	b := newBackend(client.ServiceClient().NewContainerClient(config.Container), config)
	if err := b.createContainerIfNotExists(ctx); err != nil {
		return nil, err
	}
	return b, nil
}

func newBackend(client *container.Client, config Config) *Backend {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{
		container: client,
		name:      config.Container,
		config:    config,
		logger:    logger,
	}
}

func (b *Backend) createContainerIfNotExists(ctx context.Context) error {
	var opts *container.CreateOptions
	if b.config.PublicAccess {
		opts = &container.CreateOptions{Access: to.Ptr(container.PublicAccessTypeContainer)}
	}
	_, err := b.container.Create(ctx, opts)
	switch {
	case err == nil:
		b.logger.Info("New Azure Blob container created", "container", b.name)
		return nil
	case bloberror.HasCode(err, bloberror.ContainerAlreadyExists):
		return nil
	default:
		return mapError("connect", b.name, err)
	}
}

func (b *Backend) Name() string { return backendName }

func (b *Backend) NormalizeKey(contextPath, key string) string {
	return simplestorage.NormalizeKey(contextPath, key)
}

// Put uploads content as a block blob. The content type is set on the
// blob's HTTP headers; remaining attributes become blob metadata.
func (b *Backend) Put(ctx context.Context, fullPath string, content io.Reader, attrs simplestorage.Attributes) error {
	contentType, metadata := simplestorage.SplitAttributes(attrs)

	opts := &blockblob.UploadStreamOptions{
		Metadata: encodeMetadata(metadata),
	}
	if contentType != "" {
		opts.HTTPHeaders = &blob.HTTPHeaders{BlobContentType: to.Ptr(contentType)}
	}

	if _, err := b.container.NewBlockBlobClient(fullPath).UploadStream(ctx, content, opts); err != nil {
		return mapError("put", fullPath, err)
	}
	return nil
}

// Remove deletes the blob; a missing blob is not an error
func (b *Backend) Remove(ctx context.Context, fullPath string) error {
	_, err := b.container.NewBlobClient(fullPath).Delete(ctx, nil)
	if err == nil || bloberror.HasCode(err, bloberror.BlobNotFound) {
		return nil
	}
	mapped := mapError("remove", fullPath, err)
	if simplestorage.IsNotFound(mapped) {
		return nil
	}
	return mapped
}

// GetMeta retrieves blob properties and metadata
func (b *Backend) GetMeta(ctx context.Context, fullPath string) (*simplestorage.ObjectMeta, error) {
	props, err := b.container.NewBlobClient(fullPath).GetProperties(ctx, nil)
	if err != nil {
		return nil, mapError("get_meta", fullPath, err)
	}

	meta := &simplestorage.ObjectMeta{
		Key:      fullPath,
		Size:     -1,
		Metadata: decodeMetadata(props.Metadata),
	}
	if props.ContentType != nil {
		meta.ContentType = *props.ContentType
	}
	if props.ContentLength != nil {
		meta.Size = *props.ContentLength
	}
	if props.ETag != nil {
		meta.ETag = strings.Trim(string(*props.ETag), "\"")
	}
	if props.LastModified != nil {
		meta.UpdatedAt = *props.LastModified
	}
	return meta, nil
}

// Open streams the blob body
func (b *Backend) Open(ctx context.Context, fullPath string) (io.ReadCloser, error) {
	resp, err := b.container.NewBlobClient(fullPath).DownloadStream(ctx, nil)
	if err != nil {
		return nil, mapError("open", fullPath, err)
	}
	return resp.Body, nil
}

// URL returns {protocol}://{account}.blob.core.windows.net/{container}/{path},
// or {endpoint}/{container}/{path} when a custom endpoint is configured.
func (b *Backend) URL(fullPath string) string {
	if b.config.Endpoint != "" {
		return fmt.Sprintf("%s/%s/%s", b.config.Endpoint, b.name, fullPath)
	}
	return fmt.Sprintf("%s://%s.blob.core.windows.net/%s/%s", b.config.Protocol, b.config.AccountName, b.name, fullPath)
}

// Blob metadata names must be valid C# identifiers, so separators that are
// common in attribute names are stored as underscores. Names come back
// lower-cased.
var metadataNameReplacer = strings.NewReplacer("-", "_", ".", "_", " ", "_")

func encodeMetadata(metadata map[string]string) map[string]*string {
	if len(metadata) == 0 {
		return nil
	}
	encoded := make(map[string]*string, len(metadata))
	for k, v := range metadata {
		encoded[metadataNameReplacer.Replace(k)] = to.Ptr(v)
	}
	return encoded
}

func decodeMetadata(metadata map[string]*string) map[string]string {
	decoded := make(map[string]string, len(metadata))
	for k, v := range metadata {
		if v == nil {
			continue
		}
		decoded[strings.ToLower(k)] = *v
	}
	return decoded
}

func mapError(op, fullPath string, err error) error {
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		return simplestorage.Translate(backendName, op, fullPath, respErr.StatusCode, err)
	}
	return simplestorage.Unexpected(backendName, op, fullPath, err)
}
