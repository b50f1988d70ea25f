package lnnode

import (
	"fmt"
	"strings"
)

// Kind names a supported Lightning implementation.
type Kind string

const (
	LND Kind = "lnd"
	CLN Kind = "cln"
)

// credentials are the remote paths of the admin material served by a running node.
type credentials struct {
	macaroon func(network string) string
	cert     string
}

// implementation carries everything that differs between node implementations. Adding a
// kind means adding one entry to implementations.
type implementation struct {
	kind         Kind
	ctl          string
	rpcPort      int
	defaultImage string

	pubkeyField  string
	addressField string

	newAddress  []string
	getInfo     []string
	balance     []string
	connect     func(pubkey, host string) []string
	openChannel func(pubkey, host string, amount int64) []string

	credentials *credentials
}

var implementations = map[Kind]*implementation{
	LND: {
		kind:         LND,
		ctl:          "lncli",
		rpcPort:      10009,
		defaultImage: "lightninglabs/lnd:v0.17.0-beta",
		pubkeyField:  "identity_pubkey",
		addressField: "address",
		newAddress:   []string{"newaddress", "p2wkh"},
		getInfo:      []string{"getinfo"},
		balance:      []string{"walletbalance"},
		connect: func(pubkey, host string) []string {
			return []string{"connect", fmt.Sprintf("%s@%s", pubkey, host)}
		},
		openChannel: func(pubkey, host string, amount int64) []string {
			return []string{
				"openchannel",
				"--node_key=" + pubkey,
				"--connect=" + host,
				fmt.Sprintf("--local_amt=%d", amount),
			}
		},
		credentials: &credentials{
			macaroon: func(network string) string {
				return fmt.Sprintf("/root/.lnd/data/chain/bitcoin/%s/admin.macaroon", network)
			},
			cert: "/root/.lnd/tls.cert",
		},
	},
	CLN: {
		kind:         CLN,
		ctl:          "lightning-cli",
		rpcPort:      9736,
		defaultImage: "elementsproject/lightningd:v23.08",
		pubkeyField:  "id",
		addressField: "bech32",
		newAddress:   []string{"newaddr"},
		getInfo:      []string{"getinfo"},
		balance:      []string{"listfunds"},
		connect: func(pubkey, host string) []string {
			return []string{"connect", fmt.Sprintf("%s@%s", pubkey, host)}
		},
		openChannel: func(pubkey, host string, amount int64) []string {
			return []string{"fundchannel", pubkey, fmt.Sprintf("%d", amount)}
		},
	},
}

func lookup(kind Kind) (*implementation, error) {
	impl, ok := implementations[Kind(strings.ToLower(string(kind)))]
	if !ok {
		return nil, &UnsupportedImplementationError{Kind: string(kind)}
	}
	return impl, nil
}

// SupportedKinds lists the implementations a node can be created with.
func SupportedKinds() []Kind {
	return []Kind{LND, CLN}
}

// GenerateCLICommand formats "<ctl> --network=<network> <tokens...>" for kind. Unsupported
// kinds fail before anything is formatted.
func GenerateCLICommand(kind Kind, network string, tokens []string) (string, error) {
	impl, err := lookup(kind)
	if err != nil {
		return "", err
	}
	return impl.command(network, tokens), nil
}

func (i *implementation) command(network string, tokens []string) string {
	parts := append([]string{i.ctl, "--network=" + network}, tokens...)
	return strings.Join(parts, " ")
}
