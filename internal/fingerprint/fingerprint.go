// Package fingerprint derives a coarse descriptor of the running environment
// for audit context. The descriptor is not unique and is never used for
// identity decisions.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/abdulmanankatpar6-cloud/saas-ecommerce/internal/model"
)

// Provider yields the device fingerprint attached to sessions and audit events.
type Provider interface {
	Fingerprint() model.Fingerprint
}

// Env derives the fingerprint from read-only process environment
// characteristics: hostname, OS/arch, locale, local timezone, CPU count.
type Env struct{}

var _ Provider = Env{}

// Fingerprint collects the components and a short derived hash.
func (Env) Fingerprint() model.Fingerprint {
	host, _ := os.Hostname()
	zone, _ := time.Now().Zone()

	fp := model.Fingerprint{
		Host:     host,
		OS:       runtime.GOOS,
		Arch:     runtime.GOARCH,
		Language: locale(),
		Timezone: zone,
		NumCPU:   runtime.NumCPU(),
	}
	fp.Hash = Hash(fp)
	return fp
}

// Hash condenses fingerprint components into a short stable hex string.
func Hash(fp model.Fingerprint) string {
	parts := strings.Join([]string{
		fp.Host, fp.OS, fp.Arch, fp.Language, fp.Timezone, strconv.Itoa(fp.NumCPU),
	}, "|")
	sum := sha256.Sum256([]byte(parts))
	return hex.EncodeToString(sum[:])[:16]
}

func locale() string {
	for _, k := range []string{"LC_ALL", "LANG", "LANGUAGE"} {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return "C"
}

// Static returns a fixed fingerprint; intended for tests.
type Static struct {
	FP model.Fingerprint
}

var _ Provider = Static{}

func (s Static) Fingerprint() model.Fingerprint { return s.FP }
