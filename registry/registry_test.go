package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEndpointKeys(t *testing.T) {
	assert.Equal(t, "/langtest/models/ner-bert-base/", endpointPrefix("langtest", "ner-bert-base"))
	assert.Equal(t, "/langtest/models/ner-bert-base/abc-123",
		endpointKey("langtest", "ner-bert-base", "abc-123"))
}

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient(Config{})
	assert.Error(t, err)
}

func TestClientTLSValidation(t *testing.T) {
	cfg, err := clientTLS(nil)
	assert.NoError(t, err)
	assert.Nil(t, cfg)

	cfg, err = clientTLS(&TLSConfig{Enabled: false})
	assert.NoError(t, err)
	assert.Nil(t, cfg)

	_, err = clientTLS(&TLSConfig{Enabled: true})
	assert.Error(t, err)

	_, err = clientTLS(&TLSConfig{Enabled: true, CertFile: "cert.pem"})
	assert.Error(t, err)

	_, err = clientTLS(&TLSConfig{Enabled: true, CertFile: "cert.pem", KeyFile: "key.pem"})
	assert.Error(t, err)
}
