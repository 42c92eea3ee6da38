// Package tds implements the backend service of a token distribution application.
/*
tds provides a distributor microservice (package distributor) that holds one funded
signing identity and one ERC20 token contract target. Clients that have completed an
upstream checkout call its RESTful API to receive tokens: the service validates the
request, checks that the identity holds enough tokens, and executes a signed transfer
on an ethereum-type network, waiting for the transaction to confirm.

Architecture

The network is reached through an ordered set of JSON-RPC endpoints (package
lib/chain). A single logical call is retried transparently across all configured
endpoints; a failure observed by any request advances a process-wide cursor so that
later requests are biased away from the bad endpoint. The signing identity and its
typed chain operations live in package lib/chain/ethereum; a session manager rebuilds
the session from scratch whenever a connection reset is needed, so in-flight requests
never observe a partially updated session.

Transfers are executed with a bounded retry budget and escalating backoff (package
distributor). Submissions from the signing identity are funneled through a single
in-process critical section so that nonce assignment stays strictly increasing even
under concurrent distribution requests.

Confirmed distributions are published to a message broker (package lib/msg) so that
downstream accounting can consume them. The broker is optional and product agnostic;
an AMQP implementation is provided.

The service is configured via a JSON config file and TDS_* environment variables
(package lib/config) and can be monitored via a Prometheus API by setting the flag
"-m" at startup.

Trust boundary

The service trusts the caller's claim that payment was captured upstream; it does not
re-verify checkout authenticity. Deployments that need that guarantee must front this
API with a verification step.
*/
package tds
