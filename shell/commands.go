package shell

import (
	"context"
	"flag"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/abiosoft/ishell"

	"github.com/cpu/acmekit/acme"
	"github.com/cpu/acmekit/acme/resources"
)

func (s *Shell) directoryHandler(c *ishell.Context) {
	directory, err := s.session.Directory(context.Background())
	if err != nil {
		c.Printf("directory: error fetching directory: %v\n", err)
		return
	}

	names := directory.Resources()
	sort.Strings(names)
	for _, name := range names {
		endpoint, _ := directory.URL(acme.Resource(name))
		c.Printf("%-15s %s\n", name, endpoint)
	}
	if tos := directory.Metadata().TermsOfService(); tos != nil {
		c.Printf("%-15s %s\n", "termsOfService", tos)
	}
}

func (s *Shell) nonceHandler(c *ishell.Context) {
	nonce, err := s.session.RefreshNonce(context.Background())
	if err != nil {
		c.Printf("nonce: error fetching nonce: %v\n", err)
		return
	}
	c.Printf("nonce: %s\n", nonce)
}

func (s *Shell) keyAuthHandler(c *ishell.Context) {
	if len(c.Args) != 1 {
		c.Printf("keyAuth: expected one argument: the challenge token\n")
		return
	}

	keyAuth, err := s.login.KeyAuthorization(c.Args[0])
	if err != nil {
		c.Printf("keyAuth: error computing key authorization: %v\n", err)
		return
	}
	c.Printf("%s\n", keyAuth)
}

func (s *Shell) newOrderHandler(c *ishell.Context) {
	if len(c.Args) == 0 {
		c.Printf("newOrder: expected one or more DNS identifiers\n")
		return
	}

	identifiers := make([]resources.Identifier, len(c.Args))
	for i, arg := range c.Args {
		identifiers[i] = resources.DNSIdentifier(arg)
	}

	order, err := s.login.NewOrder(context.Background(), identifiers)
	if err != nil {
		c.Printf("newOrder: error creating order: %v\n", err)
		return
	}
	s.orders = append(s.orders, order)
	c.Printf("newOrder: created order %q with status %q\n",
		order.Location(), order.Status())
}

type solveOptions struct {
	challType    string
	printKeyAuth bool
	orderIndex   int
}

func (s *Shell) solveHandler(c *ishell.Context) {
	opts := solveOptions{}
	solveFlags := flag.NewFlagSet("solve", flag.ContinueOnError)
	solveFlags.StringVar(&opts.challType, "challengeType", resources.TypeHTTP01, "Challenge type to solve")
	solveFlags.BoolVar(&opts.printKeyAuth, "printKeyAuth", false, "Print calculated key authorization")
	solveFlags.IntVar(&opts.orderIndex, "order", -1, "Index of order to solve (default: most recent)")

	err := solveFlags.Parse(c.Args)
	if err != nil && err != flag.ErrHelp {
		c.Printf("solve: error parsing input flags: %v\n", err)
		return
	} else if err == flag.ErrHelp {
		return
	}

	order, err := s.pickOrder(opts.orderIndex)
	if err != nil {
		c.Printf("solve: %v\n", err)
		return
	}
	authzURLs, err := order.Authorizations()
	if err != nil {
		c.Printf("solve: error reading order authorizations: %v\n", err)
		return
	}

	for _, authzURL := range authzURLs {
		if err := s.solveAuthz(c, authzURL, opts); err != nil {
			c.Printf("solve: %v\n", err)
			return
		}
	}
}

func (s *Shell) solveAuthz(c *ishell.Context, authzURL *url.URL, opts solveOptions) error {
	ctx := context.Background()

	authz, err := s.login.GetAuthorization(ctx, authzURL)
	if err != nil {
		return err
	}
	if authz.Status() != acme.StatusPending {
		c.Printf("solve: authorization %q is %q, skipping\n", authzURL, authz.Status())
		return nil
	}
	identifier, err := authz.Identifier()
	if err != nil {
		return err
	}

	challenge, ok := authz.FindChallenge(opts.challType)
	if !ok {
		return acme.NewInputError(
			"authorization %q has no %q challenge", authzURL, opts.challType)
	}

	if err := s.provision(challenge, identifier.Value); err != nil {
		return err
	}
	if opts.printKeyAuth {
		if tokenChall, ok := challenge.(interface{ KeyAuthorization() (string, error) }); ok {
			keyAuth, err := tokenChall.KeyAuthorization()
			if err != nil {
				return err
			}
			c.Printf("key authorization:\n%s\n", keyAuth)
		}
	}

	if err := s.login.TriggerChallenge(ctx, challenge); err != nil {
		return err
	}
	c.Printf("solve: %q challenge for identifier %q started\n",
		challenge.Type(), identifier.Value)
	return nil
}

// provision installs the challenge response with the challenge test
// server. challtestsrv derives the served value from the raw key
// authorization for every challenge type.
func (s *Shell) provision(challenge resources.Challenge, identValue string) error {
	switch chall := challenge.(type) {
	case *resources.Http01Challenge:
		token, err := chall.Token()
		if err != nil {
			return err
		}
		keyAuth, err := chall.KeyAuthorization()
		if err != nil {
			return err
		}
		s.challSrv.AddHTTPOneChallenge(token, keyAuth)
	case *resources.Dns01Challenge:
		keyAuth, err := chall.KeyAuthorization()
		if err != nil {
			return err
		}
		s.challSrv.AddDNSOneChallenge("_acme-challenge."+identValue+".", keyAuth)
	case *resources.TlsAlpn01Challenge:
		keyAuth, err := chall.KeyAuthorization()
		if err != nil {
			return err
		}
		s.challSrv.AddTLSALPNChallenge(identValue, keyAuth)
	default:
		return acme.NewInputError(
			"challenge type %q has no response provisioner", challenge.Type())
	}
	return nil
}

type pollOptions struct {
	status       string
	maxTries     int
	sleepSeconds int
	orderIndex   int
	authz        string
}

func (s *Shell) pollHandler(c *ishell.Context) {
	opts := pollOptions{}
	pollFlags := flag.NewFlagSet("poll", flag.ContinueOnError)
	pollFlags.StringVar(&opts.status, "status", "valid", "Poll object until it has the given status")
	pollFlags.IntVar(&opts.maxTries, "maxTries", 5, "Number of times to poll before giving up")
	pollFlags.IntVar(&opts.sleepSeconds, "sleep", 5, "Number of seconds to sleep between poll attempts")
	pollFlags.IntVar(&opts.orderIndex, "order", -1, "Index of order to poll (default: most recent)")
	pollFlags.StringVar(&opts.authz, "authz", "", "URL of an authorization to poll instead of an order")

	err := pollFlags.Parse(c.Args)
	if err != nil && err != flag.ErrHelp {
		c.Printf("poll: error parsing input flags: %v\n", err)
		return
	} else if err == flag.ErrHelp {
		return
	}

	target, err := s.pollTarget(opts)
	if err != nil {
		c.Printf("poll: %v\n", err)
		return
	}

	want := acme.ParseStatus(opts.status)
	for try := 0; try < opts.maxTries; try++ {
		status, err := target.poll(context.Background())
		if err != nil {
			c.Printf("poll: error polling %q: %v\n", target.url, err)
			return
		}
		if status == want {
			c.Printf("poll: polling done. %q is status %q\n", target.url, status)
			return
		}
		c.Printf("poll: try %d. %q is status %q\n", try, target.url, status)
		time.Sleep(time.Duration(opts.sleepSeconds) * time.Second)
	}
	c.Printf("poll: polling failed. reached %d tries without status %q\n",
		opts.maxTries, want)
}

// pollTarget resolves the poll flags to one pollable object.
type pollTarget struct {
	url  *url.URL
	poll func(ctx context.Context) (acme.Status, error)
}

func (s *Shell) pollTarget(opts pollOptions) (*pollTarget, error) {
	if opts.authz != "" {
		authzURL, err := url.Parse(strings.TrimSpace(opts.authz))
		if err != nil {
			return nil, acme.NewInputError("invalid authz URL %q: %s", opts.authz, err)
		}
		return &pollTarget{
			url: authzURL,
			poll: func(ctx context.Context) (acme.Status, error) {
				authz, err := s.login.GetAuthorization(ctx, authzURL)
				if err != nil {
					return acme.StatusUnknown, err
				}
				return authz.Status(), nil
			},
		}, nil
	}

	order, err := s.pickOrder(opts.orderIndex)
	if err != nil {
		return nil, err
	}
	return &pollTarget{
		url: order.Location(),
		poll: func(ctx context.Context) (acme.Status, error) {
			if err := s.login.UpdateOrder(ctx, order); err != nil {
				return acme.StatusUnknown, err
			}
			return order.Status(), nil
		},
	}, nil
}

// pickOrder returns the order at the given index, or the most recently
// created order when index is negative.
func (s *Shell) pickOrder(index int) (*resources.Order, error) {
	if len(s.orders) == 0 {
		return nil, acme.NewInputError("no orders created yet, use newOrder first")
	}
	if index < 0 {
		return s.orders[len(s.orders)-1], nil
	}
	if index >= len(s.orders) {
		return nil, acme.NewInputError(
			"order index %d out of range, have %d orders", index, len(s.orders))
	}
	return s.orders[index], nil
}
