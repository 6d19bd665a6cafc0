// Package deployer implements the deployment orchestrator: it validates the
// host, creates the install layout, installs the uploader's Python
// dependencies, stages the artifact and generates the environment file,
// systemd unit, manual launcher and crontab helper, in that fixed order.
//
// Only two steps are fatal: dependency installation and artifact staging.
// Everything else either cannot fail under normal conditions or degrades to
// a warning. The produced deployment is inert; starting the uploader is a
// separate operator action.
package deployer
