package storage

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	cos "github.com/tencentyun/cos-go-sdk-v5"
)

// COS stores objects in a Tencent Cloud COS bucket
type COS struct {
	client       *cos.Client
	publicDomain string
}

// NewCOS creates a COS store from the bucket settings
func NewCOS(cfg Config) (*COS, error) {
	bucket := strings.TrimSpace(cfg.COSBucket)
	region := strings.TrimSpace(cfg.COSRegion)
	if region == "" {
		region = "ap-hongkong"
	}

	bucketURL, err := url.Parse(fmt.Sprintf("https://%s.cos.%s.myqcloud.com", bucket, region))
	if err != nil {
		return nil, err
	}
	client := cos.NewClient(&cos.BaseURL{BucketURL: bucketURL}, &http.Client{
		Transport: &cos.AuthorizationTransport{
			SecretID:  strings.TrimSpace(cfg.COSSecretID),
			SecretKey: strings.TrimSpace(cfg.COSSecretKey),
		},
	})

	domain := strings.TrimSpace(cfg.COSPublicDomain)
	if domain == "" {
		domain = bucketURL.String()
	}
	return &COS{client: client, publicDomain: strings.TrimRight(domain, "/")}, nil
}

// Put uploads data under key
func (c *COS) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	key, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	opts := &cos.ObjectPutOptions{
		ObjectPutHeaderOptions: &cos.ObjectPutHeaderOptions{ContentType: contentType},
	}
	if _, err := c.client.Object.Put(ctx, key, bytes.NewReader(data), opts); err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return c.URL(key), nil
}

// URL returns the public URL of key
func (c *COS) URL(key string) string {
	return c.publicDomain + "/" + strings.TrimLeft(key, "/")
}
