package aws_s3

import (
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/sharedcode/livepers"
)

type Config struct {
	// "http://127.0.0.1:9000"; empty uses the AWS endpoint of Region.
	HostEndpointUrl string
	// "us-east-1"
	Region   string
	Username string
	Password string
}

// ConfigFromLivepers maps the s3 section of the configuration.
func ConfigFromLivepers(cfg livepers.S3Config) Config {
	return Config{
		HostEndpointUrl: cfg.Endpoint,
		Region:          cfg.Region,
		Username:        cfg.AccessKey,
		Password:        cfg.SecretKey,
	}
}

// Connect returns a client for the configured endpoint. A custom endpoint (e.g. minio) is
// addressed path-style.
func Connect(config Config) *s3.Client {
	client := s3.NewFromConfig(aws.Config{Region: config.Region}, func(o *s3.Options) {
		if config.HostEndpointUrl != "" {
			o.BaseEndpoint = aws.String(config.HostEndpointUrl)
			o.UsePathStyle = true
		}
		if config.Username != "" {
			o.Credentials = credentials.NewStaticCredentialsProvider(config.Username, config.Password, "")
		}
	})
	return client
}
