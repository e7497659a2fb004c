//go:generate mockgen -source=presenter_iface.go -destination=mocks/presenter_mock.go -package=mocks

package core

import "github.com/dkeye/livesignal/internal/domain"

// Presenter receives session lifecycle notifications for display.
type Presenter interface {
	SessionCreated(sid domain.SessionID, target domain.TargetID, meta domain.StreamAnnouncement)
	SessionEnded(sid domain.SessionID)
	AuthError(server, message string)
	ConnectionLost(server string, err error)
}

// NopPresenter discards every notification.
type NopPresenter struct{}

func (NopPresenter) SessionCreated(domain.SessionID, domain.TargetID, domain.StreamAnnouncement) {}
func (NopPresenter) SessionEnded(domain.SessionID)                                               {}
func (NopPresenter) AuthError(string, string)                                                    {}
func (NopPresenter) ConnectionLost(string, error)                                                {}
