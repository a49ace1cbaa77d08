package bridge

import (
	"context"
	"encoding/hex"

	"github.com/comfoconnect/comfoconnect-go/zehnder"
)

// RegisteredApp is one client the bridge currently remembers.
type RegisteredApp struct {
	UUID       string // hex-encoded
	DeviceName string
}

// ListRegisteredApps enumerates every client registered on the bridge,
// including this one.
func (b *Bridge) ListRegisteredApps(ctx context.Context) ([]RegisteredApp, error) {
	client, err := b.sess.ActiveClient()
	if err != nil {
		return nil, err
	}
	resp, err := client.Request(ctx, zehnder.ListRegisteredAppsRequestType, nil)
	if err != nil {
		return nil, err
	}
	confirm, err := zehnder.UnmarshalListRegisteredAppsConfirm(resp.Payload)
	if err != nil {
		return nil, err
	}
	apps := make([]RegisteredApp, 0, len(confirm.Apps))
	for _, a := range confirm.Apps {
		apps = append(apps, RegisteredApp{UUID: hex.EncodeToString(a.UUID), DeviceName: a.DeviceName})
	}
	return apps, nil
}

// DeregisterApp removes a client (identified by its hex-encoded uuid) from
// the bridge's registration list.
func (b *Bridge) DeregisterApp(ctx context.Context, uuid string) error {
	client, err := b.sess.ActiveClient()
	if err != nil {
		return err
	}
	raw, err := hex.DecodeString(uuid)
	if err != nil {
		return err
	}
	req := zehnder.DeregisterAppRequest{UUID: raw}
	_, err = client.Request(ctx, zehnder.DeregisterAppRequestType, req.Marshal())
	return err
}
