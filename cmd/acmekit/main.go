// acmekit provides a developer-oriented command-line shell interface for
// interacting with an ACME server.
package main

import (
	"flag"
	"os"

	acmeclient "github.com/cpu/acmekit/acme/client"
	acmeshell "github.com/cpu/acmekit/shell"
)

const (
	DIRECTORY_DEFAULT = "https://acme-staging-v02.api.letsencrypt.org/directory"
	CA_DEFAULT        = "/etc/ssl/cert.pem"
	CONTACT_DEFAULT   = ""
	HTTP_PORT_DEFAULT = 5002
	TLS_PORT_DEFAULT  = 5001
	DNS_PORT_DEFAULT  = 5252
)

func main() {
	server := flag.String(
		"server",
		DIRECTORY_DEFAULT,
		"Directory URL or provider alias URI for the ACME server")

	caCert := flag.String(
		"ca",
		CA_DEFAULT,
		"CA certificate(s) for verifying ACME server HTTPS")

	email := flag.String(
		"contact",
		CONTACT_DEFAULT,
		"Optional contact email address for the registered ACME account")

	httpPort := flag.Int(
		"httpPort",
		HTTP_PORT_DEFAULT,
		"HTTP-01 challenge server port")

	tlsPort := flag.Int(
		"tlsPort",
		TLS_PORT_DEFAULT,
		"TLS-ALPN-01 challenge server port")

	dnsPort := flag.Int(
		"dnsPort",
		DNS_PORT_DEFAULT,
		"DNS-01 challenge server port")

	pebble := flag.Bool(
		"pebble",
		false,
		"Use Pebble defaults")

	flag.Parse()

	if *pebble {
		pebbleServer := "acme://pebble"
		server = &pebbleServer
		pebbleBaseDir := os.Getenv("GOPATH")
		pebbleCA := pebbleBaseDir + "/src/github.com/letsencrypt/pebble/test/certs/pebble.minica.pem"
		caCert = &pebbleCA
	}

	opts := &acmeshell.Options{
		SessionConfig: acmeclient.SessionConfig{
			Server:   *server,
			CABundle: *caCert,
		},
		ContactEmail: *email,
		HTTPPort:     *httpPort,
		TLSPort:      *tlsPort,
		DNSPort:      *dnsPort,
	}

	shell := acmeshell.New(opts)
	shell.Run()
}
