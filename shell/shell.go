// Package shell provides an interactive developer shell for poking at an
// ACME server with the acmekit client.
package shell

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/abiosoft/ishell"
	"github.com/abiosoft/readline"
	"github.com/letsencrypt/challtestsrv"

	acmeclient "github.com/cpu/acmekit/acme/client"
	"github.com/cpu/acmekit/acme/keys"
	"github.com/cpu/acmekit/acme/resources"
	acmecmd "github.com/cpu/acmekit/cmd"
)

// The base prompt used for the ishell instance.
const basePrompt = "[ ACME ] > "

// Options allows specifying options for creating an ACME shell. This
// includes the acmeclient.SessionConfig options in addition to account
// registration details and challenge server response ports for HTTP-01,
// TLS-ALPN-01 and DNS-01 challenges.
type Options struct {
	acmeclient.SessionConfig
	// Optional contact email address for the account registered at
	// startup.
	ContactEmail string
	// Port number the ACME server validates HTTP-01 challenges over.
	HTTPPort int
	// Port number the ACME server validates TLS-ALPN-01 challenges over.
	TLSPort int
	// Port number the ACME server validates DNS-01 challenges over.
	DNSPort int
}

// Shell is an ishell.Shell instance tailored for ACME. At its core
// a Shell is an acmeclient.Login bound to a fresh account, with an
// associated challtestsrv.ChallSrv instance for provisioning challenge
// responses.
type Shell struct {
	*ishell.Shell
	session  *acmeclient.Session
	login    *acmeclient.Login
	challSrv *challtestsrv.ChallSrv
	orders   []*resources.Order
}

// New creates a Shell by building an *ishell.Shell instance,
// a *challtestsrv.ChallSrv instance, an acmeclient.Session for the
// configured server, and a fresh account Login. The challenge server is
// not started until Run is called.
func New(opts *Options) *Shell {
	shell := ishell.NewWithConfig(&readline.Config{
		Prompt: basePrompt,
	})

	challSrv, err := challtestsrv.New(challtestsrv.Config{
		HTTPOneAddrs:    []string{fmt.Sprintf(":%d", opts.HTTPPort)},
		TLSALPNOneAddrs: []string{fmt.Sprintf(":%d", opts.TLSPort)},
		DNSOneAddrs:     []string{fmt.Sprintf(":%d", opts.DNSPort)},
		Log:             log.New(os.Stdout, "challRespSrv: ", log.Ldate|log.Ltime),
	})
	acmecmd.FailOnError(err, "Unable to create challenge test server")

	session, err := acmeclient.NewSession(opts.SessionConfig)
	acmecmd.FailOnError(err, "Unable to create ACME session")

	signer, err := keys.NewSigner("ecdsa")
	acmecmd.FailOnError(err, "Unable to generate account key")

	var contacts []string
	if opts.ContactEmail != "" {
		contacts = append(contacts, "mailto:"+opts.ContactEmail)
	}
	login, err := session.RegisterAccount(context.Background(), signer, contacts, true)
	acmecmd.FailOnError(err, "Unable to register ACME account")
	log.Printf("Registered account %q", login.AccountLocation())

	acmeShell := &Shell{
		Shell:    shell,
		session:  session,
		login:    login,
		challSrv: challSrv,
	}
	acmeShell.addCommands()
	return acmeShell
}

// Run starts the Shell, dropping into an interactive session that blocks
// on user input until it is time to exit. The Shell's challenge server
// is started before the shell and shut down after the session ends.
func (s *Shell) Run() {
	go s.challSrv.Run()
	go acmecmd.CatchSignals(s.challSrv.Shutdown)

	s.Println("Welcome to ACME Shell")
	s.Shell.Run()
	s.Println("Goodbye!")
	s.challSrv.Shutdown()
}

func (s *Shell) addCommands() {
	s.AddCmd(&ishell.Cmd{
		Name: "directory",
		Help: "Print the server's directory resources",
		Func: s.directoryHandler,
	})
	s.AddCmd(&ishell.Cmd{
		Name: "nonce",
		Help: "Fetch a fresh anti-replay nonce from the newNonce endpoint",
		Func: s.nonceHandler,
	})
	s.AddCmd(&ishell.Cmd{
		Name: "keyAuth",
		Help: "Compute the key authorization for a challenge token",
		Func: s.keyAuthHandler,
	})
	s.AddCmd(&ishell.Cmd{
		Name: "newOrder",
		Help: "Create an order for one or more DNS identifiers",
		Func: s.newOrderHandler,
	})
	s.AddCmd(&ishell.Cmd{
		Name:    "solve",
		Aliases: []string{"solveChallenge"},
		Help:    "Provision a challenge response and trigger validation",
		Func:    s.solveHandler,
	})
	s.AddCmd(&ishell.Cmd{
		Name: "poll",
		Help: "Poll an order or authorization until it has the desired status",
		Func: s.pollHandler,
	})
}
