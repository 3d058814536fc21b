package whatsapp

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/mdp/qrterminal/v3"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/types/events"
)

// LinkDevice performs QR code pairing for a new WhatsApp device.
// Displays the QR code in the terminal and waits for the user to scan it.
func LinkDevice() error {
	container, err := openContainer()
	if err != nil {
		return err
	}

	// Remove any stale device entries from previous pairing attempts.
	// GetFirstDevice would otherwise return an old invalidated session,
	// causing 401 errors when the client connects.
	oldDevices, err := container.GetAllDevices(context.Background())
	if err != nil {
		return fmt.Errorf("failed to list existing devices: %w", err)
	}
	for _, d := range oldDevices {
		jid := "(unknown)"
		if d.ID != nil {
			jid = d.ID.String()
		}
		fmt.Printf("Removing stale device: %s\n", jid)
		_ = d.Delete(context.Background())
	}

	device := container.NewDevice()
	client := whatsmeow.NewClient(device, &waviLogger{module: "client"})

	// Fires once the client is fully connected and synced. The QR
	// "success" event only means the scan was accepted; the client
	// still needs to complete initial sync. Disconnecting before
	// Connected fires leaves the pairing incomplete.
	connectedCh := make(chan struct{}, 1)
	client.AddEventHandler(func(evt interface{}) {
		if _, ok := evt.(*events.Connected); ok {
			select {
			case connectedCh <- struct{}{}:
			default:
			}
		}
	})

	qrChan, err := client.GetQRChannel(context.Background())
	if err != nil {
		return fmt.Errorf("failed to get QR channel: %w", err)
	}

	if err := client.Connect(); err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	fmt.Println("Scan the QR code below with your WhatsApp app:")
	fmt.Println("  WhatsApp > Settings > Linked Devices > Link a Device")
	fmt.Println()

	for item := range qrChan {
		switch item.Event {
		case "code":
			qrterminal.GenerateHalfBlock(item.Code, qrterminal.L, os.Stdout)
			fmt.Println()
			fmt.Println("Waiting for scan...")
		case "success":
			fmt.Println("\nScan accepted, completing initial sync...")
			select {
			case <-connectedCh:
				// fully synced
			case <-time.After(30 * time.Second):
				client.Disconnect()
				return fmt.Errorf("timed out waiting for initial sync, try again")
			}
			fmt.Printf("Paired successfully! JID: %s\n", client.Store.ID)
			fmt.Println("Run 'wavi' to start chatting.")
			client.Disconnect()
			return nil
		case "timeout":
			client.Disconnect()
			return fmt.Errorf("QR code expired, run the command again")
		default:
			client.Disconnect()
			return fmt.Errorf("pairing failed: %s", item.Event)
		}
	}

	client.Disconnect()
	return fmt.Errorf("QR channel closed unexpectedly")
}

// UnlinkDevice removes the stored WhatsApp session, requiring re-pairing.
func UnlinkDevice() error {
	container, err := openContainer()
	if err != nil {
		return err
	}

	devices, err := container.GetAllDevices(context.Background())
	if err != nil {
		return fmt.Errorf("failed to list devices: %w", err)
	}
	if len(devices) == 0 {
		return fmt.Errorf("no WhatsApp session found")
	}
	for _, d := range devices {
		if d.ID != nil {
			fmt.Printf("Removing device: %s\n", d.ID)
		}
		if err := d.Delete(context.Background()); err != nil {
			return fmt.Errorf("failed to delete device: %w", err)
		}
	}
	fmt.Println("Session removed. Run 'wavi link' to pair again.")
	return nil
}
