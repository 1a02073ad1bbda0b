// Package software implements the loadable-provider crypto back-end
// (spec §4.6 "Provider back-end"): keys are addressed by a named
// parameter string simulating a PrivateKeyHandle rather than a
// keyregistry slot id. Grounded on the teacher's
// infrastructure/globalsigner multi-backend-behind-one-interface shape,
// the simulated dispatch is rate-limited and circuit-broken the way a
// real HSM/PSA call path would be: golang.org/x/time/rate throttles the
// call rate, and infrastructure/resilience turns a limiter wait timeout
// or a tripped breaker into the spec's timeout error tag.
package software

import (
	"context"
	"crypto"
	"crypto/x509"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/aosedge/aos_core_lib_go/crypto/aescbc"
	"github.com/aosedge/aos_core_lib_go/crypto/hashrand"
	"github.com/aosedge/aos_core_lib_go/crypto/keyregistry"
	"github.com/aosedge/aos_core_lib_go/crypto/provider"
	"github.com/aosedge/aos_core_lib_go/crypto/x509util"
	coreerrors "github.com/aosedge/aos_core_lib_go/infrastructure/errors"
	"github.com/aosedge/aos_core_lib_go/infrastructure/logging"
	"github.com/aosedge/aos_core_lib_go/infrastructure/metrics"
	"github.com/aosedge/aos_core_lib_go/infrastructure/resilience"
)

// handle is an opaque named parameter wearing the provider.KeyHandle
// contract, simulating a loadable provider's PrivateKeyHandle.
type handle string

func (h handle) String() string { return string(h) }

// Config tunes the simulated back-end call path.
type Config struct {
	// CallsPerSecond caps the sustained sign/export call rate.
	CallsPerSecond float64
	// Burst is the limiter's burst allowance.
	Burst int
	// CallTimeout bounds how long a single call waits on the limiter
	// before surfacing a timeout error.
	CallTimeout time.Duration
	// CircuitBreaker configures the breaker wrapping dispatch.
	CircuitBreaker resilience.Config
}

// DefaultConfig returns tunables modelling a modest HSM call budget: a
// narrow call rate and a circuit breaker that trips fast and reopens
// slowly, matching a hardware security module's limited call budget
// rather than a freely retriable network call.
func DefaultConfig(logger *logging.Logger) Config {
	return Config{
		CallsPerSecond: 50,
		Burst:          10,
		CallTimeout:    2 * time.Second,
		CircuitBreaker: resilience.StrictBackendCBConfig(logger),
	}
}

type keyEntry struct {
	capability keyregistry.PrivateKeyCapability
	digest     keyregistry.DigestAlgorithm
}

// Backend is the loadable-provider provider.Provider implementation.
type Backend struct {
	mu      sync.Mutex
	keys    map[string]*keyEntry
	nextID  uint64
	limiter *rate.Limiter
	breaker *resilience.CircuitBreaker
	timeout time.Duration
}

// New creates a Backend with the given call-rate and resilience tunables.
func New(cfg Config) *Backend {
	if cfg.CallsPerSecond <= 0 {
		cfg.CallsPerSecond = 50
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 10
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 2 * time.Second
	}

	return &Backend{
		keys:    make(map[string]*keyEntry),
		limiter: rate.NewLimiter(rate.Limit(cfg.CallsPerSecond), cfg.Burst),
		breaker: resilience.New(cfg.CircuitBreaker),
		timeout: cfg.CallTimeout,
	}
}

func (b *Backend) lookup(h provider.KeyHandle) (*keyEntry, string, error) {
	name, ok := h.(handle)
	if !ok {
		return nil, "", coreerrors.InvalidArgumentf("software: handle %v was not issued by this back-end", h)
	}

	b.mu.Lock()
	entry, ok := b.keys[string(name)]
	b.mu.Unlock()
	if !ok {
		return nil, "", coreerrors.NotFoundf("software: key handle %q not registered", name)
	}
	return entry, string(name), nil
}

// RegisterKey stores capability under a freshly minted named parameter.
func (b *Backend) RegisterKey(capability keyregistry.PrivateKeyCapability) (provider.KeyHandle, keyregistry.DigestAlgorithm, error) {
	if capability == nil {
		return nil, "", coreerrors.InvalidArgumentf("software: nil capability")
	}

	digest, err := keyregistry.SelectDigestAlgorithm(capability.KeyType(), capability.BitLength())
	if err != nil {
		return nil, "", err
	}

	id := atomic.AddUint64(&b.nextID, 1)
	name := handle(fmt.Sprintf("software-key-%d", id))

	b.mu.Lock()
	b.keys[string(name)] = &keyEntry{capability: capability, digest: digest}
	b.mu.Unlock()

	return name, digest, nil
}

// DeregisterKey destroys the capability backing handle and forgets it.
func (b *Backend) DeregisterKey(h provider.KeyHandle) error {
	entry, name, err := b.lookup(h)
	if err != nil {
		return err
	}

	b.mu.Lock()
	delete(b.keys, name)
	b.mu.Unlock()

	entry.capability.Destroy()
	return nil
}

// KeyAttributes resolves the named parameter's attributes.
func (b *Backend) KeyAttributes(h provider.KeyHandle) (keyregistry.KeyAttributes, error) {
	entry, _, err := b.lookup(h)
	if err != nil {
		return keyregistry.KeyAttributes{}, err
	}

	return keyregistry.KeyAttributes{
		Type:       entry.capability.KeyType(),
		Algorithm:  entry.digest,
		BitLength:  entry.capability.BitLength(),
		UsageFlags: keyregistry.UsageSignHash | keyregistry.UsageVerifyHash,
	}, nil
}

// Signer adapts handle to a crypto.Signer whose Sign calls are
// rate-limited and circuit-broken as they cross into the simulated
// back-end.
func (b *Backend) Signer(h provider.KeyHandle) (x509util.Signer, error) {
	entry, name, err := b.lookup(h)
	if err != nil {
		return nil, err
	}

	der, err := entry.capability.PublicKeyDER()
	if err != nil {
		return nil, coreerrors.Failedf(err, "software: export public key")
	}
	pub, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, coreerrors.Failedf(err, "software: parse exported public key")
	}

	return &providerSigner{backend: b, handle: name, public: pub, digest: entry.digest}, nil
}

// signHash dispatches a pre-hashed digest to the named parameter's
// capability, throttled by the call-rate limiter and guarded by the
// circuit breaker.
func (b *Backend) signHash(name string, digest []byte) ([]byte, error) {
	start := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()

	if err := b.limiter.Wait(ctx); err != nil {
		err := coreerrors.Timeoutf("software: call-rate limiter wait exceeded budget: %v", err)
		metrics.RecordKeyOperation("software", "sign", time.Since(start), err)
		return nil, err
	}

	var sig []byte
	execErr := b.breaker.Execute(ctx, func() error {
		b.mu.Lock()
		entry, ok := b.keys[name]
		b.mu.Unlock()
		if !ok {
			return coreerrors.NotFoundf("software: key handle %q not registered", name)
		}

		s, err := entry.capability.SignHash(digest, entry.digest)
		if err != nil {
			return err
		}
		sig = s
		return nil
	})

	if execErr != nil {
		var reported error
		switch execErr {
		case resilience.ErrCircuitOpen, resilience.ErrTooManyRequests:
			reported = coreerrors.Timeoutf("software: %v", execErr)
		default:
			reported = execErr
		}
		metrics.RecordKeyOperation("software", "sign", time.Since(start), reported)
		return nil, reported
	}

	metrics.RecordKeyOperation("software", "sign", time.Since(start), nil)
	return sig, nil
}

type providerSigner struct {
	backend *Backend
	handle  string
	public  crypto.PublicKey
	digest  keyregistry.DigestAlgorithm
}

func (s *providerSigner) Public() crypto.PublicKey { return s.public }

func (s *providerSigner) DigestAlgorithm() keyregistry.DigestAlgorithm { return s.digest }

func (s *providerSigner) Sign(_ io.Reader, digest []byte, opts crypto.SignerOpts) ([]byte, error) {
	if err := x509util.CheckHashConsistency(opts, s.digest); err != nil {
		return nil, err
	}
	return s.backend.signHash(s.handle, digest)
}

// CreateHash dispatches directly to crypto/hashrand.
func (b *Backend) CreateHash(algorithm hashrand.Algorithm) (*hashrand.Hasher, error) {
	return hashrand.CreateHash(algorithm)
}

// RandInt dispatches directly to crypto/hashrand.
func (b *Backend) RandInt(maxValue uint64) (uint64, error) {
	return hashrand.RandInt(maxValue)
}

// RandBuffer dispatches directly to crypto/hashrand.
func (b *Backend) RandBuffer(buf []byte) error {
	return hashrand.RandBuffer(buf)
}

// CreateUUIDv4 dispatches directly to crypto/hashrand.
func (b *Backend) CreateUUIDv4() ([16]byte, error) {
	return hashrand.CreateUUIDv4()
}

// CreateUUIDv5 dispatches directly to crypto/hashrand.
func (b *Backend) CreateUUIDv5(namespace [16]byte, name string) [16]byte {
	return hashrand.CreateUUIDv5(namespace, name)
}

// NewCipher dispatches directly to crypto/aescbc.
func (b *Backend) NewCipher(key, iv []byte, direction aescbc.Direction) (*aescbc.Cipher, error) {
	return aescbc.Init(key, iv, direction)
}

// CreateCSR signs a CSR through the named parameter behind handle.
func (b *Backend) CreateCSR(template x509util.CSRTemplate, h provider.KeyHandle, allowedExtraOIDs []string) ([]byte, error) {
	signer, err := b.Signer(h)
	if err != nil {
		return nil, err
	}
	return x509util.CreateCSR(template, signer, allowedExtraOIDs)
}

// CreateCertificate signs a certificate through the named parameter
// behind handle.
func (b *Backend) CreateCertificate(template x509util.CertTemplate, parent *x509util.Certificate, h provider.KeyHandle) ([]byte, error) {
	signer, err := b.Signer(h)
	if err != nil {
		return nil, err
	}
	return x509util.CreateCertificate(template, parent, signer)
}

// CreateClientCert issues a client certificate signed through the named
// parameter behind handle.
func (b *Backend) CreateClientCert(csrPEM, caCertPEM, serial []byte, h provider.KeyHandle) ([]byte, error) {
	signer, err := b.Signer(h)
	if err != nil {
		return nil, err
	}
	return x509util.CreateClientCert(csrPEM, caCertPEM, serial, signer)
}

// Close destroys every registered key's capability and forgets it.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for name, entry := range b.keys {
		entry.capability.Destroy()
		delete(b.keys, name)
	}
	return nil
}
