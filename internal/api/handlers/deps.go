package handlers

import (
	"github.com/sirupsen/logrus"

	"github.com/shire602-cyber/alainbcenter-crm-sub005/internal/ai/reply"
	"github.com/shire602-cyber/alainbcenter-crm-sub005/internal/ai/retrieval"
	"github.com/shire602-cyber/alainbcenter-crm-sub005/internal/ai/usage"
	"github.com/shire602-cyber/alainbcenter-crm-sub005/internal/providers"
)

// Deps bundles the services the handlers operate on.
type Deps struct {
	Reply    *reply.Service
	Store    *retrieval.Store
	Registry *providers.Registry
	Usage    *usage.Service
	Log      *logrus.Logger
}
