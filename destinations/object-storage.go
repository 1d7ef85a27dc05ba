package destinations

import (
	"github.com/sloonz/xbprep/lib"

	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/sirupsen/logrus"
)

var (
	osLog = logrus.WithFields(logrus.Fields{
		"destination": "object-storage",
	})
)

// S3-compatible storage. Options: URL (http[s]://key:secret@endpoint/bucket), or Endpoint, AccessKeyID,
// SecretAccessKey, Bucket separately ; Prefix, Secure, PartSize (in MiB)
type objectStorageDestination struct {
	prefix   string
	bucket   string
	client   *minio.Client
	partSize uint64
}

type objectStorageConfig struct {
	endpoint        string
	secure          bool
	accessKeyID     string
	secretAccessKey string
	bucket          string
	prefix          string
	partSize        uint64
}

func parseObjectStorageOptions(options *xbprep.Options) (objectStorageConfig, error) {
	var cfg objectStorageConfig

	u, err := url.Parse(options.String["URL"])
	if err != nil {
		return cfg, fmt.Errorf("invalid object storage URL: %v", err)
	}

	cfg.endpoint = options.GetString("Endpoint", u.Host)
	cfg.secure = u.Scheme != "http"
	cfg.accessKeyID = options.GetString("AccessKeyID", u.User.Username())
	password, _ := u.User.Password()
	cfg.secretAccessKey = options.GetString("SecretAccessKey", password)
	cfg.bucket = strings.Trim(options.GetString("Bucket", u.Path), "/")

	cfg.secure, err = options.GetBoolean("Secure", cfg.secure)
	if err != nil {
		osLog.Warnf("cannot parse secure option: %v", err)
		cfg.secure = true
	}

	cfg.prefix = strings.Trim(options.String["Prefix"], "/") + "/"
	if cfg.prefix == "/" {
		cfg.prefix = ""
	}

	if options.String["PartSize"] != "" {
		ps, err := strconv.ParseUint(options.String["PartSize"], 10, 64)
		if err != nil {
			osLog.Warnf("cannot parse PartSize option: %v", err)
		} else {
			cfg.partSize = ps * 1024 * 1024
		}
	}

	if cfg.endpoint == "" || cfg.bucket == "" {
		return cfg, fmt.Errorf("object storage destination: missing endpoint or bucket")
	}

	return cfg, nil
}

func newObjectStorageDestination(options *xbprep.Options) (xbprep.Destination, error) {
	cfg, err := parseObjectStorageOptions(options)
	if err != nil {
		return nil, err
	}

	client, err := minio.New(cfg.endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.accessKeyID, cfg.secretAccessKey, ""),
		Secure: cfg.secure,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create object storage instance: %v", err)
	}

	return &objectStorageDestination{client: client, prefix: cfg.prefix, bucket: cfg.bucket, partSize: cfg.partSize}, nil
}

// Part of xbprep.Destination interface
func (d *objectStorageDestination) ListArchives() ([]string, error) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var res []string
	for obj := range d.client.ListObjects(ctx, d.bucket, minio.ListObjectsOptions{Prefix: d.prefix}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("failed to list archives on object storage: %v", obj.Err)
		}

		name := path.Base(obj.Key)
		if strings.HasSuffix(obj.Key, "/") || !isArchiveName(name) {
			continue
		}
		res = append(res, name)
	}

	return res, nil
}

// Part of xbprep.Destination interface
func (d *objectStorageDestination) SendArchive(name string, data io.Reader) error {
	key := d.prefix + name
	osLog.Printf("writing archive to %s", key)
	_, err := d.client.PutObject(context.Background(), d.bucket, key, data, -1, minio.PutObjectOptions{PartSize: d.partSize})
	if err != nil {
		d.client.RemoveObject(context.Background(), d.bucket, key, minio.RemoveObjectOptions{}) //nolint:errcheck
		return fmt.Errorf("failed to write archive to object storage: %v", err)
	}
	return nil
}
