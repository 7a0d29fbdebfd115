package main

import (
	"archive/zip"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"

	"github.com/go-python/wheelinstall/pkg/destination"
	"github.com/go-python/wheelinstall/pkg/install"
	"github.com/go-python/wheelinstall/pkg/install/metadata"
	"github.com/go-python/wheelinstall/pkg/python"
	"github.com/go-python/wheelinstall/pkg/wheelsource"
)

func init() {
	var platFile string
	var requested bool
	var installerName string
	cmd := &cobra.Command{
		Use:   "install [flags] IN_WHEELFILE.whl",
		Short: "Install a wheel in to a target filesystem",
		Long: "Given a Python wheel file, install it in to a target filesystem." +
			"\n\n" +
			"In order to know where to place files, wheelinstall needs to know a few " +
			"things about the target environment.  You must supply this using the " +
			"--platform-file flag, pointing it at a YAML file that is as follows:" +
			"\n\n" +
			"    # file locations\n" +
			"    ConsoleShebang: /usr/bin/python3.9\n" +
			"    GraphicalShebang: /usr/bin/python3.9\n" +
			"    Scheme:\n" +
			"      purelib: /usr/lib/python3.9/site-packages\n" +
			"      platlib: /usr/lib/python3.9/site-packages\n" +
			"      headers: /usr/include/site/python3.9/\n" +
			"      scripts: /usr/bin\n" +
			"      data: /usr\n" +
			"\n" +
			"    # optional: set when installing for a Windows target, to select the\n" +
			"    # launcher stub architecture for console_scripts/gui_scripts entries\n" +
			"    platform_tag: win_amd64\n" +
			"\n" +
			"LIMITATION: While checksums are verified, signatures are not.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			yamlBytes, err := os.ReadFile(platFile)
			if err != nil {
				return err
			}
			var plat python.Platform
			if err := yaml.Unmarshal(yamlBytes, &plat, yaml.DisallowUnknownFields); err != nil {
				return fmt.Errorf("%s: %w", platFile, err)
			}
			if err := plat.Init(); err != nil {
				return fmt.Errorf("%s: %w", platFile, err)
			}

			wheelPath := args[0]
			zr, err := zip.OpenReader(wheelPath)
			if err != nil {
				return err
			}
			defer zr.Close()

			src, err := wheelsource.Open(&zr.Reader, wheelPath)
			if err != nil {
				return fmt.Errorf("%s: %w", wheelPath, err)
			}

			recordScheme := "platlib"
			if src.Metadata().RootIsPurelib {
				recordScheme = "purelib"
			}

			dst := &destination.FSDestination{
				Schemes: map[string]string{
					"purelib": plat.Scheme.PureLib,
					"platlib": plat.Scheme.PlatLib,
					"headers": plat.Scheme.Headers,
					"scripts": plat.Scheme.Scripts,
					"data":    plat.Scheme.Data,
				},
				RecordScheme:       recordScheme,
				ConsoleInterpreter: plat.ConsoleShebang,
				GUIInterpreter:     plat.GraphicalShebang,
				PlatformTag:        plat.PlatformTag,
			}

			extra := map[string][]byte{
				"INSTALLER": metadata.Installer(installerName),
			}
			if requested {
				extra["REQUESTED"] = metadata.Requested("direct user request")
			}
			directURL, err := metadata.DirectURLJSON(metadata.DirectURL{
				URL: "file://" + wheelPath,
			})
			if err != nil {
				return err
			}
			extra["direct_url.json"] = directURL

			return install.Install(cmd.Context(), src, dst, plat, extra)
		},
	}
	cmd.Flags().StringVar(&platFile, "platform-file", "",
		"Read `IN_YAML_FILE` to determine details about the target platform")
	if err := cmd.MarkFlagRequired("platform-file"); err != nil {
		panic(err)
	}
	cmd.Flags().BoolVar(&requested, "requested", false,
		"Mark the install as directly requested by the user, writing a REQUESTED marker")
	cmd.Flags().StringVar(&installerName, "installer-name", "wheelinstall",
		"Value written to the installed distribution's INSTALLER file")
	argparser.AddCommand(cmd)
}
