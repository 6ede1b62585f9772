//go:build windows

package wallpaper

import (
	"log/slog"
	"unsafe"

	"golang.org/x/sys/windows"
	"golang.org/x/sys/windows/registry"

	"himawari-desktop/internal/apperr"
)

const (
	colorBackground      = 1
	spiSetDeskWallpaper  = 0x0014
	spifUpdateIniFile    = 0x01
	spifSendWinIniChange = 0x02
)

var (
	user32                   = windows.NewLazySystemDLL("user32.dll")
	procSetSysColors         = user32.NewProc("SetSysColors")
	procSystemParametersInfo = user32.NewProc("SystemParametersInfoW")
)

type windowsSetter struct {
	logger *slog.Logger
}

func newPlatformSetter(logger *slog.Logger) Setter {
	return &windowsSetter{logger: logger}
}

func (s *windowsSetter) Set(imagePath string) error {
	path, err := absPath(imagePath)
	if err != nil {
		return err
	}

	// Registry flags control the wallpaper style: centred and fitted on a black fill
	s.logger.Info("setting Windows desktop wallpaper registry keys")
	if err := setStringValues(`Control Panel\Colors`, map[string]string{
		"Background": "0 0 0",
	}); err != nil {
		return err
	}
	if err := setStringValues(`Control Panel\Desktop`, map[string]string{
		"Wallpaper":      path,
		"WallpaperStyle": "6",
		"TileWallpaper":  "0",
	}); err != nil {
		return err
	}

	s.logger.Info("setting Windows desktop wallpaper", "path", path)

	elements := []int32{colorBackground}
	colors := []uint32{0} // black
	if r, _, err := procSetSysColors.Call(1,
		uintptr(unsafe.Pointer(&elements[0])),
		uintptr(unsafe.Pointer(&colors[0]))); r == 0 {
		return apperr.Wrap(apperr.KindPlatform, "SetSysColors failed", err)
	}

	widePath, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return apperr.Wrap(apperr.KindPlatform, "invalid wallpaper path", err)
	}
	if r, _, err := procSystemParametersInfo.Call(spiSetDeskWallpaper, 0,
		uintptr(unsafe.Pointer(widePath)),
		spifUpdateIniFile|spifSendWinIniChange); r == 0 {
		return apperr.Wrap(apperr.KindPlatform, "SystemParametersInfoW failed", err)
	}
	return nil
}

func setStringValues(path string, values map[string]string) error {
	key, err := registry.OpenKey(registry.CURRENT_USER, path, registry.SET_VALUE)
	if err != nil {
		return apperr.Wrap(apperr.KindPlatform, `failed to open HKCU\`+path, err)
	}
	defer key.Close()

	for name, value := range values {
		if err := key.SetStringValue(name, value); err != nil {
			return apperr.Wrap(apperr.KindPlatform, "failed to set "+name, err)
		}
	}
	return nil
}
