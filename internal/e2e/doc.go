// Package e2e drives the client stack (session, identity provider, gateway,
// REST client, search state and router) against an in-process catalog server.
package e2e
