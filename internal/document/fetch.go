package document

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog/log"
)

// Document is a fetched document held in memory.
type Document struct {
	Ref  string
	Name string
	MIME string
	Data []byte
}

// AWSOptions configures access to s3:// references. Empty keys use the default chain.
type AWSOptions struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
}

// Fetcher loads documents referenced by:
// - file://path or absolute/relative filesystem paths
// - http(s):// URLs
// - s3://bucket/key (via AWS SDK v2)
type Fetcher struct {
	HTTP     *http.Client
	AWS      AWSOptions
	MaxBytes int64

	s3Mu    sync.Mutex
	s3      *s3.Client
	loadAWS func(ctx context.Context, opts ...func(*awscfg.LoadOptions) error) (aws.Config, error)
}

func NewFetcher(opts AWSOptions) *Fetcher {
	return &Fetcher{HTTP: http.DefaultClient, AWS: opts, loadAWS: awscfg.LoadDefaultConfig}
}

// Fetch reads the whole document referenced by ref.
func (f *Fetcher) Fetch(ctx context.Context, ref string) (*Document, error) {
	// strip optional #page fragment
	clean := ref
	if i := strings.Index(clean, "#"); i >= 0 {
		clean = clean[:i]
	}

	var (
		data []byte
		name string
		err  error
	)
	switch {
	case strings.HasPrefix(clean, "s3://"):
		data, name, err = f.fetchS3(ctx, clean)
	case strings.HasPrefix(clean, "http://") || strings.HasPrefix(clean, "https://"):
		data, name, err = f.fetchHTTP(ctx, clean)
	default:
		path := strings.TrimPrefix(clean, "file://")
		name = filepath.Base(path)
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", ref, err)
	}
	if f.MaxBytes > 0 && int64(len(data)) > f.MaxBytes {
		return nil, fmt.Errorf("fetch %s: document exceeds %d bytes", ref, f.MaxBytes)
	}

	return &Document{
		Ref:  ref,
		Name: name,
		MIME: mimetype.Detect(data).String(),
		Data: data,
	}, nil
}

func (f *Fetcher) fetchHTTP(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", err
	}
	client := f.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("http %d", resp.StatusCode)
	}
	var body io.Reader = resp.Body
	if f.MaxBytes > 0 {
		// one byte over the cap is enough for Fetch to reject it
		body = io.LimitReader(resp.Body, f.MaxBytes+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, "", err
	}
	name := filepath.Base(req.URL.Path)
	return data, name, nil
}

// s3Client builds the S3 client on first success. A failed config load is
// not cached, so the next s3:// fetch tries again.
func (f *Fetcher) s3Client(ctx context.Context) (*s3.Client, error) {
	f.s3Mu.Lock()
	defer f.s3Mu.Unlock()
	if f.s3 != nil {
		return f.s3, nil
	}

	var opts []func(*awscfg.LoadOptions) error
	if f.AWS.Region != "" {
		opts = append(opts, awscfg.WithRegion(f.AWS.Region))
	}
	if f.AWS.AccessKeyID != "" && f.AWS.SecretAccessKey != "" {
		opts = append(opts, awscfg.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(f.AWS.AccessKeyID, f.AWS.SecretAccessKey, ""),
		))
	}
	load := f.loadAWS
	if load == nil {
		load = awscfg.LoadDefaultConfig
	}
	cfg, err := load(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	f.s3 = s3.NewFromConfig(cfg)
	return f.s3, nil
}

func (f *Fetcher) fetchS3(ctx context.Context, s3url string) ([]byte, string, error) {
	bucket, key, err := ParseS3URL(s3url)
	if err != nil {
		return nil, "", err
	}
	cli, err := f.s3Client(ctx)
	if err != nil {
		return nil, "", err
	}

	buf := manager.NewWriteAtBuffer(nil)
	n, err := manager.NewDownloader(cli).Download(ctx, buf, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, "", err
	}
	log.Info().Str("bucket", bucket).Str("key", key).Int64("bytes", n).Msg("downloaded s3 document")
	return buf.Bytes(), filepath.Base(key), nil
}

// ParseS3URL splits s3://bucket/key.
func ParseS3URL(s3url string) (bucket, key string, err error) {
	path := strings.TrimPrefix(s3url, "s3://")
	slash := strings.Index(path, "/")
	if slash <= 0 || slash == len(path)-1 {
		return "", "", fmt.Errorf("invalid s3 url: %s", s3url)
	}
	return path[:slash], path[slash+1:], nil
}
