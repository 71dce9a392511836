package discovery

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"

	"github.com/mingodad/libnavajo/internal/logging"
)

const (
	// ServiceType is the mDNS service type servers advertise
	ServiceType = "_navajo._tcp"

	// ServiceDomain is the mDNS domain (typically "local.")
	ServiceDomain = "local."

	// DefaultBrowseTimeout is the default time spent collecting answers
	DefaultBrowseTimeout = 5 * time.Second
)

// Advertiser announces a running server until Shutdown.
type Advertiser struct {
	server   *zeroconf.Server
	instance string
	once     sync.Once
}

// Advertise registers instance on the local network. Metadata becomes the
// TXT record, sorted by key.
func Advertise(instance string, port int, metadata map[string]string) (*Advertiser, error) {
	if instance == "" {
		return nil, errors.New("discovery: instance name is empty")
	}
	server, err := zeroconf.Register(instance, ServiceType, ServiceDomain, port, encodeText(metadata), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to register mDNS service: %w", err)
	}

	logging.Info("Advertising server over mDNS",
		zap.String("instance", instance),
		zap.String("service", ServiceType),
		zap.Int("port", port),
	)
	return &Advertiser{server: server, instance: instance}, nil
}

// Shutdown withdraws the announcement. Safe to call more than once.
func (a *Advertiser) Shutdown() {
	if a == nil {
		return
	}
	a.once.Do(func() {
		a.server.Shutdown()
		logging.Debug("mDNS advertisement withdrawn", zap.String("instance", a.instance))
	})
}

func encodeText(metadata map[string]string) []string {
	keys := make([]string, 0, len(metadata))
	for k := range metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	text := make([]string, 0, len(keys))
	for _, k := range keys {
		if metadata[k] == "" {
			text = append(text, k)
			continue
		}
		text = append(text, k+"="+metadata[k])
	}
	return text
}

// Browser finds advertised servers
type Browser struct {
	// Timeout is the maximum time to wait for answers
	Timeout time.Duration
}

// NewBrowser creates a browser with default settings
func NewBrowser() *Browser {
	return &Browser{
		Timeout: DefaultBrowseTimeout,
	}
}

// Browse collects every instance that answers before the timeout or ctx
// ends.
func (b *Browser) Browse(ctx context.Context) ([]*Instance, error) {
	ctx, cancel := context.WithTimeout(ctx, b.Timeout)
	defer cancel()

	var (
		mu        sync.Mutex
		instances []*Instance
	)
	err := b.browse(ctx, func(inst *Instance) bool {
		mu.Lock()
		instances = append(instances, inst)
		mu.Unlock()
		return true
	})
	if err != nil {
		return nil, err
	}

	<-ctx.Done()

	mu.Lock()
	defer mu.Unlock()
	sort.Slice(instances, func(i, j int) bool { return instances[i].Name < instances[j].Name })
	return instances, nil
}

// Find waits for the named instance.
func (b *Browser) Find(ctx context.Context, name string) (*Instance, error) {
	ctx, cancel := context.WithTimeout(ctx, b.Timeout)
	defer cancel()

	found := make(chan *Instance, 1)
	err := b.browse(ctx, func(inst *Instance) bool {
		if inst.Name != name {
			return true
		}
		select {
		case found <- inst:
		default:
		}
		cancel()
		return false
	})
	if err != nil {
		return nil, err
	}

	select {
	case inst := <-found:
		return inst, nil
	case <-ctx.Done():
		select {
		case inst := <-found:
			return inst, nil
		default:
		}
		return nil, fmt.Errorf("instance %q not found within %s", name, b.Timeout)
	}
}

// browse feeds parsed entries to visit until it returns false or ctx ends.
func (b *Browser) browse(ctx context.Context, visit func(*Instance) bool) error {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	entries := make(chan *zeroconf.ServiceEntry)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case entry, ok := <-entries:
				if !ok {
					return
				}
				inst := parseServiceEntry(entry)
				if inst == nil {
					continue
				}
				logging.Debug("Discovered server", zap.String("instance", inst.Name), zap.String("addr", inst.IP))
				if !visit(inst) {
					return
				}
			}
		}
	}()

	if err := resolver.Browse(ctx, ServiceType, ServiceDomain, entries); err != nil {
		return fmt.Errorf("failed to browse for mDNS services: %w", err)
	}
	return nil
}

// parseServiceEntry converts a zeroconf entry. It returns nil for entries
// without a usable address.
func parseServiceEntry(entry *zeroconf.ServiceEntry) *Instance {
	if entry == nil || entry.Instance == "" {
		return nil
	}

	// Prefer IPv4
	var ip string
	if len(entry.AddrIPv4) > 0 {
		ip = entry.AddrIPv4[0].String()
	} else if len(entry.AddrIPv6) > 0 {
		ip = entry.AddrIPv6[0].String()
	}
	if ip == "" || entry.Port == 0 {
		return nil
	}

	metadata := make(map[string]string)
	for _, txt := range entry.Text {
		key, value, _ := strings.Cut(txt, "=")
		if key != "" {
			metadata[key] = value
		}
	}

	return &Instance{
		Name:         entry.Instance,
		Hostname:     entry.HostName,
		IP:           ip,
		Port:         entry.Port,
		Metadata:     metadata,
		DiscoveredAt: time.Now(),
	}
}
