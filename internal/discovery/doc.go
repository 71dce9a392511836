// Package discovery announces servers on the local network over multicast
// DNS and finds the ones already running.
//
// A server started with discovery enabled registers a "_navajo._tcp"
// service whose TXT record carries the version and whether the endpoint
// speaks TLS. The navajo-server discover command browses for them.
//
// # Usage Example
//
//	adv, err := discovery.Advertise("navajo on build-host", 8080,
//	    map[string]string{"version": version.Version, "tls": "false"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer adv.Shutdown()
//
//	instances, err := discovery.NewBrowser().Browse(ctx)
//	for _, inst := range instances {
//	    fmt.Println(inst.BaseURL())
//	}
package discovery
