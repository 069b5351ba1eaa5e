// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: BUSL-1.1

package config

type (
	// SQL is the configuration for connecting to a SQL backed datastore
	SQL struct {
		// User is the username to be used for connecting to database
		User string `yaml:"user" validate:"required"`
		// Password is the password corresponding to the username
		Password string `yaml:"password" json:"-"`
		// DatabaseName is the name of SQL database to connect to
		DatabaseName string `yaml:"databaseName" validate:"required"`
		// ConnectAddr is the remote addr of the database
		ConnectAddr string `yaml:"connectAddr" validate:"required"`
		// DBExtensionName is the name of the extension
		DBExtensionName string `yaml:"dbExtensionName" validate:"required"`
		// SSLMode is passed to the driver, default is disable
		SSLMode string `yaml:"sslMode"`
	}

	// DynamoDBConfig is the configuration of the single table task layout
	DynamoDBConfig struct {
		// Region is the AWS region of the table
		Region string `yaml:"region" validate:"required"`
		// TableName is the name of the table holding the tasks
		TableName string `yaml:"tableName" validate:"required"`
		// StatusIndexName is the secondary index keyed by status and deadline
		// Default is GSI1
		StatusIndexName string `yaml:"statusIndexName"`
		// Endpoint overrides the service endpoint, for local stacks
		Endpoint string `yaml:"endpoint"`
	}
)
