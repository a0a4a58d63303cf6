// Package discovery announces the control surface on the local network
// over SSDP so clients can find the daemon without configuration.
package discovery

import (
	"context"
	"fmt"
	"net"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/koron/go-ssdp"

	"github.com/MrSnakeDoc/restreamer/internal/logger"
	"github.com/MrSnakeDoc/restreamer/internal/utils"
	"github.com/MrSnakeDoc/restreamer/internal/version"
)

const (
	// DeviceType is the search target restreamer answers to.
	DeviceType = "urn:schemas-restreamer:device:ReStreamer:1"

	DefaultInterval = 30 * time.Second
	DefaultMaxAge   = 1800
)

type Options struct {
	DeviceIDFile string
	Port         int
	Interval     time.Duration
	MaxAge       int
	Logger       logger.Logger
}

// Advertiser publishes one SSDP resource per local IPv4 address.
type Advertiser struct {
	opts     Options
	deviceID string
	log      logger.Logger

	mu       sync.Mutex
	ads      []*ssdp.Advertiser
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func New(opts Options) (*Advertiser, error) {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.MaxAge <= 0 {
		opts.MaxAge = DefaultMaxAge
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}

	id, err := LoadOrCreateDeviceID(opts.DeviceIDFile)
	if err != nil {
		return nil, err
	}

	return &Advertiser{
		opts:     opts,
		deviceID: id,
		log:      opts.Logger.With(logger.String("device", id)),
		stopCh:   make(chan struct{}),
	}, nil
}

func (a *Advertiser) DeviceID() string {
	return a.deviceID
}

// Start announces every usable address and keeps the announcements alive
// until Stop or ctx is done. Having no usable address is not an error.
func (a *Advertiser) Start(ctx context.Context) error {
	ips, err := LocalIPv4()
	if err != nil {
		return fmt.Errorf("failed to list interfaces: %w", err)
	}
	if len(ips) == 0 {
		a.log.Warn("no network address to announce on")
		return nil
	}

	usn := USN(a.deviceID)
	server := Server()

	a.mu.Lock()
	for _, ip := range ips {
		location := Location(ip, a.opts.Port)
		ad, err := ssdp.Advertise(DeviceType, usn, location, server, a.opts.MaxAge)
		if err != nil {
			a.log.Error("failed to create SSDP advertiser",
				logger.String("location", location),
				logger.Error(err))
			continue
		}
		a.ads = append(a.ads, ad)
		a.log.Info("announcing over SSDP", logger.String("location", location))
	}
	a.mu.Unlock()

	a.alive()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		ticker := time.NewTicker(a.opts.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				a.alive()
			case <-a.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

func (a *Advertiser) alive() {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, ad := range a.ads {
		if err := ad.Alive(); err != nil {
			a.log.Warn("failed to send SSDP alive", logger.Error(err))
		}
	}
}

// Stop sends byebye for every announcement and releases the sockets.
func (a *Advertiser) Stop() {
	a.stopOnce.Do(func() { close(a.stopCh) })
	a.wg.Wait()

	a.mu.Lock()
	defer a.mu.Unlock()

	for _, ad := range a.ads {
		if err := ad.Bye(); err != nil {
			a.log.Warn("failed to send SSDP byebye", logger.Error(err))
		}
		utils.MustClose(ad, a.log, "ssdp advertiser")
	}
	a.ads = nil
}

// USN is the unique service name of the root device.
func USN(deviceID string) string {
	return "uuid:" + deviceID + "::" + DeviceType
}

// Location is the URL clients use to reach the control surface.
func Location(ip string, port int) string {
	return "http://" + net.JoinHostPort(ip, fmt.Sprint(port)) + "/"
}

// Server is the SERVER header value of announcements.
func Server() string {
	return fmt.Sprintf("%s/1.0 UPnP/1.0 %s", runtime.GOOS, version.Product())
}

// LocalIPv4 lists the IPv4 addresses of up, non-loopback interfaces,
// sorted and without duplicates.
func LocalIPv4() ([]string, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var out []string
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			ipNet, ok := addr.(*net.IPNet)
			if !ok {
				continue
			}
			ip4 := ipNet.IP.To4()
			if ip4 == nil || ip4.IsLoopback() {
				continue
			}
			s := ip4.String()
			if !seen[s] {
				seen[s] = true
				out = append(out, s)
			}
		}
	}
	sort.Strings(out)
	return out, nil
}
