/*
Copyright Prova Contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package controller assembles the gateway's REST handlers.
package controller

import (
	"github.com/xavi-pinsach/prova/pkg/controller/rest"
	healthcheckrest "github.com/xavi-pinsach/prova/pkg/controller/rest/healthcheck"
	internalapirest "github.com/xavi-pinsach/prova/pkg/controller/rest/internalapi"
	proversrest "github.com/xavi-pinsach/prova/pkg/controller/rest/provers"
	verifyrest "github.com/xavi-pinsach/prova/pkg/controller/rest/verify"
	vkrest "github.com/xavi-pinsach/prova/pkg/controller/rest/vk"
	"github.com/xavi-pinsach/prova/pkg/gateway/anchor"
	"github.com/xavi-pinsach/prova/pkg/gateway/identity"
	"github.com/xavi-pinsach/prova/pkg/gateway/prover"
	"github.com/xavi-pinsach/prova/pkg/gateway/verify"
	"github.com/xavi-pinsach/prova/pkg/gateway/vk"
)

// Providers carries the gateway services the REST operations are built on.
type Providers struct {
	Registry       *vk.Registry
	Verifier       *verify.Service
	Catalog        *prover.Catalog
	Identities     *identity.Service
	Anchors        *anchor.Service
	InternalSecret string
}

// GetRESTHandlers returns all REST handlers provided by the gateway controller.
func GetRESTHandlers(p *Providers) []rest.Handler {
	var handlers []rest.Handler

	handlers = append(handlers, healthcheckrest.New().GetRESTHandlers()...)
	handlers = append(handlers, proversrest.New(p.Catalog).GetRESTHandlers()...)
	handlers = append(handlers, vkrest.New(p.Registry).GetRESTHandlers()...)
	handlers = append(handlers, verifyrest.New(p.Verifier).GetRESTHandlers()...)
	handlers = append(handlers, internalapirest.New(p.Identities, p.Anchors, p.InternalSecret).GetRESTHandlers()...)

	return handlers
}
