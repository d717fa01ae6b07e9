package chain

import (
	"context"
	"net/http"
	"sync"

	"github.com/filecoin-project/go-jsonrpc"
	ma "github.com/multiformats/go-multiaddr"
	manet "github.com/multiformats/go-multiaddr/net"
	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"

	"github.com/seyuan/msig_coordinator/model"
)

// OwnedResource is the oracle's view of one exclusively owned resource as
// it currently exists on chain.
type OwnedResource struct {
	ID      string `json:"id"`
	Version uint64 `json:"version"`
	Owner   string `json:"owner"`
}

// ExecutionOutcome reports whether a transaction digest was found on chain
// and whether its execution succeeded.
type ExecutionOutcome struct {
	Found   bool `json:"found"`
	Success bool `json:"success"`
}

// NodeAPI is the RPC surface of the chain node the coordinator talks to.
type NodeAPI struct {
	Internal struct {
		GetOwnedResources     func(ctx context.Context, ids []string) ([]OwnedResource, error)
		GetTransactionOutcome func(ctx context.Context, digest string) (ExecutionOutcome, error)
	}
}

func (a *NodeAPI) GetOwnedResources(ctx context.Context, ids []string) ([]OwnedResource, error) {
	return a.Internal.GetOwnedResources(ctx, ids)
}

func (a *NodeAPI) GetTransactionOutcome(ctx context.Context, digest string) (ExecutionOutcome, error) {
	return a.Internal.GetTransactionOutcome(ctx, digest)
}

// NewNodeRPC dials the node's JSON-RPC endpoint given a multiaddr listen
// address and an optional bearer token.
func NewNodeRPC(ctx context.Context, listenAddr string, token string) (*NodeAPI, jsonrpc.ClientCloser, error) {
	parsedAddr, err := ma.NewMultiaddr(listenAddr)
	if err != nil {
		return nil, nil, err
	}

	_, addr, err := manet.DialArgs(parsedAddr)
	if err != nil {
		return nil, nil, err
	}

	headers := http.Header{}
	if token != "" {
		headers.Add("Authorization", "Bearer "+token)
	}

	var res NodeAPI
	closer, err := jsonrpc.NewMergeClient(ctx, "ws://"+addr+"/rpc/v1", "Msig",
		[]interface{}{&res.Internal}, headers)

	return &res, closer, err
}

const ownershipBatchSize = 50

// Oracle resolves resource ownership and execution outcomes through a
// chain node, fanning large ownership lookups out in bounded batches.
type Oracle struct {
	node *NodeAPI
}

func NewOracle(node *NodeAPI) *Oracle {
	return &Oracle{node: node}
}

func (o *Oracle) ResolveResourceOwnership(ctx context.Context, ids []string) ([]OwnedResource, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var mu sync.Mutex
	var out []OwnedResource

	g, gctx := errgroup.WithContext(ctx)
	for start := 0; start < len(ids); start += ownershipBatchSize {
		end := start + ownershipBatchSize
		if end > len(ids) {
			end = len(ids)
		}
		batch := ids[start:end]

		g.Go(func() error {
			resources, err := o.node.GetOwnedResources(gctx, batch)
			if err != nil {
				return err
			}
			mu.Lock()
			out = append(out, resources...)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (o *Oracle) ResolveExecutionOutcome(ctx context.Context, digest string) (ExecutionOutcome, error) {
	return o.node.GetTransactionOutcome(ctx, digest)
}

// Router dispatches oracle lookups to the node configured for the target
// network. The oracle map is fixed at construction.
type Router struct {
	oracles map[model.Network]*Oracle
}

func NewRouter(oracles map[model.Network]*Oracle) *Router {
	return &Router{oracles: oracles}
}

func (r *Router) oracle(network model.Network) (*Oracle, error) {
	o, ok := r.oracles[network]
	if !ok {
		return nil, xerrors.Errorf("no node configured for network %s", network)
	}
	return o, nil
}

func (r *Router) ResolveResourceOwnership(ctx context.Context, network model.Network, ids []string) ([]OwnedResource, error) {
	o, err := r.oracle(network)
	if err != nil {
		return nil, err
	}
	return o.ResolveResourceOwnership(ctx, ids)
}

func (r *Router) ResolveExecutionOutcome(ctx context.Context, network model.Network, digest string) (ExecutionOutcome, error) {
	o, err := r.oracle(network)
	if err != nil {
		return ExecutionOutcome{}, err
	}
	return o.ResolveExecutionOutcome(ctx, digest)
}
