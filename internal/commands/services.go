package commands

import (
	"github.com/cleared-dev/tilikirja/internal/accounts"
	"github.com/cleared-dev/tilikirja/internal/allocations"
	"github.com/cleared-dev/tilikirja/internal/attachments"
	"github.com/cleared-dev/tilikirja/internal/invoice"
	"github.com/cleared-dev/tilikirja/internal/journal"
	"github.com/cleared-dev/tilikirja/internal/partners"
	"github.com/cleared-dev/tilikirja/internal/report"
)

func (a *app) chart(s *session) *accounts.Registry {
	return accounts.NewRegistry(s.store, a.component("accounts"))
}

func (a *app) vouchers(s *session) *journal.Service {
	return journal.NewService(s.store, a.cfg.Attachments.Policy(), a.component("journal"))
}

func (a *app) invoices(s *session) *invoice.Service {
	return invoice.NewService(s.store, a.cfg.Attachments.Policy(), a.cfg.Accounts, a.component("invoice"))
}

func (a *app) files(s *session) *attachments.Service {
	return attachments.NewService(s.store, a.cfg.Attachments.Policy(), a.component("attachments"))
}

func (a *app) directory(s *session) *partners.Directory {
	return partners.NewDirectory(s.store, a.component("partners"))
}

func (a *app) tree(s *session) *allocations.Tree {
	return allocations.NewTree(s.store, a.component("allocations"))
}

func (a *app) reporter(s *session) *report.Reporter {
	return report.NewReporter(a.chart(s))
}
